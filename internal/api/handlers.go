package api

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/chainpkg/chainpkg/internal/catalog"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/install"
	"github.com/chainpkg/chainpkg/internal/platform"
	"github.com/chainpkg/chainpkg/internal/publish"
	"github.com/chainpkg/chainpkg/internal/scaffold"
	"github.com/chainpkg/chainpkg/internal/storage"
	"github.com/chainpkg/chainpkg/internal/units"
)

type publishRequest struct {
	PackagePath string         `json:"packagePath" binding:"required"`
	Version     string         `json:"version"`
	Tags        []string       `json:"tags"`
	Wallet      string         `json:"wallet"`
	Confirm     bool           `json:"confirm"`
	Options     requestOptions `json:"options"`
}

func (s *Server) publish(c *gin.Context) {
	var req publishRequest
	if !s.bind(c, &req) {
		return
	}
	a, good := s.app(c, req.Options)
	if !good {
		return
	}
	signer, err := a.Signer(req.Wallet)
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	pipeline, err := a.Publisher(confirmer(req.Confirm), s.metrics.observe)
	if err != nil {
		fail(c, s.errs, err)
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()
	out, err := pipeline.Run(ctx, signer, publish.Options{Dir: req.PackagePath, Version: req.Version, Tags: req.Tags})
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	outcome(c, out.State, out.Message, out)
}

type installRequest struct {
	Name      string         `json:"name" binding:"required"`
	Version   string         `json:"version"`
	OutputDir string         `json:"outputDir"`
	Force     bool           `json:"force"`
	Options   requestOptions `json:"options"`
}

func (s *Server) install(c *gin.Context) {
	var req installRequest
	if !s.bind(c, &req) {
		return
	}
	a, good := s.app(c, req.Options)
	if !good {
		return
	}
	installer, err := a.Installer()
	if err != nil {
		fail(c, s.errs, err)
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()
	res, err := installer.Install(ctx, req.Name, install.Options{Version: req.Version, OutputDir: req.OutputDir, Force: req.Force})
	switch {
	case err != nil:
		fail(c, s.errs, err)
	case res.Status == install.NotFound:
		failWith(c, http.StatusNotFound, errs.KindPackageNotFound, res.Message, res)
	default:
		ok(c, http.StatusOK, res)
	}
}

type searchRequest struct {
	Query           string         `json:"query" form:"query"`
	PackageType     string         `json:"packageType" form:"packageType"`
	MinEndorsements int            `json:"minEndorsements" form:"minEndorsements" binding:"min=0"`
	Limit           int            `json:"limit" form:"limit" binding:"min=0"`
	Refresh         bool           `json:"refresh" form:"refresh"`
	Options         requestOptions `json:"options"`
}

func (s *Server) searchPost(c *gin.Context) {
	var req searchRequest
	if s.bind(c, &req) {
		s.search(c, req)
	}
}

func (s *Server) searchGet(c *gin.Context) {
	var req searchRequest
	if s.bindQuery(c, &req) {
		s.search(c, req)
	}
}

func (s *Server) search(c *gin.Context, req searchRequest) {
	a, good := s.app(c, req.Options)
	if !good {
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	res, err := a.Catalog().Search(ctx, req.Query, catalog.Filters{
		Kind:            req.PackageType,
		MinEndorsements: req.MinEndorsements,
		Limit:           req.Limit,
	}, req.Refresh)
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	ok(c, http.StatusOK, res)
}

type endorseRequest struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Register    bool           `json:"register"`
	StakeAmount string         `json:"stakeAmount"`
	Wallet      string         `json:"wallet"`
	Confirm     bool           `json:"confirm"`
	Options     requestOptions `json:"options"`
}

func (s *Server) endorse(c *gin.Context) {
	var req endorseRequest
	if !s.bind(c, &req) {
		return
	}
	if !req.Register && req.Name == "" {
		fail(c, s.errs, errs.New(errs.KindValidation, "name is required unless registering as an endorser"))
		return
	}
	a, good := s.app(c, req.Options)
	if !good {
		return
	}
	signer, err := a.Signer(req.Wallet)
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	svc := a.Endorsements(confirmer(req.Confirm))

	ctx, cancel := s.ctx(c)
	defer cancel()
	if req.Register {
		stake := a.Store.Fees().MinEndorserStake
		if req.StakeAmount != "" {
			if stake, err = parseAmount("stakeAmount", req.StakeAmount); err != nil {
				fail(c, s.errs, err)
				return
			}
		}
		out, err := svc.RegisterEndorser(ctx, signer, stake)
		if err != nil {
			fail(c, s.errs, err)
			return
		}
		outcome(c, out.State, out.Message, out)
		return
	}
	out, err := svc.Endorse(ctx, signer, req.Name, req.Version)
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	outcome(c, out.State, out.Message, out)
}

type tipRequest struct {
	Name    string         `json:"name" binding:"required"`
	Version string         `json:"version"`
	Amount  string         `json:"amount" binding:"required"`
	Wallet  string         `json:"wallet"`
	Confirm bool           `json:"confirm"`
	Options requestOptions `json:"options"`
}

func (s *Server) tip(c *gin.Context) {
	var req tipRequest
	if !s.bind(c, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	a, good := s.app(c, req.Options)
	if !good {
		return
	}
	signer, err := a.Signer(req.Wallet)
	if err != nil {
		fail(c, s.errs, err)
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()
	out, err := a.Endorsements(confirmer(req.Confirm)).Tip(ctx, signer, req.Name, req.Version, amount)
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	outcome(c, out.State, out.Message, out)
}

type walletRequest struct {
	Action   string         `json:"action" binding:"required,oneof=create import list show remove use balance"`
	Name     string         `json:"name"`
	Material string         `json:"material"`
	Options  requestOptions `json:"options"`
}

func (s *Server) wallet(c *gin.Context) {
	var req walletRequest
	if !s.bind(c, &req) {
		return
	}
	switch req.Action {
	case "create", "import", "remove", "use":
		if req.Name == "" {
			fail(c, s.errs, errs.New(errs.KindValidation, "name is required for %s", req.Action))
			return
		}
	}
	a, good := s.app(c, req.Options)
	if !good {
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()

	var (
		data any
		err  error
	)
	switch req.Action {
	case "create":
		data, err = a.Wallets.Create(ctx, req.Name)
	case "import":
		data, err = a.Wallets.Import(req.Name, req.Material)
	case "list":
		data = a.Wallets.List()
	case "show":
		data, err = a.Wallets.Show(req.Name)
	case "remove":
		err = a.Wallets.Remove(req.Name)
		data = gin.H{"removed": req.Name}
	case "use":
		err = a.Wallets.Use(req.Name)
		data = gin.H{"default": req.Name}
	case "balance":
		var bal uint64
		bal, err = a.Wallets.Balance(ctx, req.Name)
		data = gin.H{"balance": bal, "display": units.Display(bal)}
	}
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	ok(c, http.StatusOK, data)
}

func (s *Server) walletStatus(c *gin.Context) {
	a, good := s.app(c, requestOptions{Network: c.Query("network")})
	if !good {
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	st, err := a.WalletStatus(ctx)
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	ok(c, http.StatusOK, st)
}

type storageRequest struct {
	Action         string         `json:"action" binding:"required,oneof=upload download test"`
	Path           string         `json:"path"`
	ContentAddress string         `json:"contentAddress"`
	Output         string         `json:"output"`
	Extract        bool           `json:"extract"`
	Options        requestOptions `json:"options"`
}

func (s *Server) storage(c *gin.Context) {
	var req storageRequest
	if !s.bind(c, &req) {
		return
	}
	switch {
	case req.Action == "upload" && req.Path == "":
		fail(c, s.errs, errs.New(errs.KindValidation, "path is required for upload"))
		return
	case req.Action == "download" && (req.ContentAddress == "" || req.Output == ""):
		fail(c, s.errs, errs.New(errs.KindValidation, "contentAddress and output are required for download"))
		return
	}
	a, good := s.app(c, req.Options)
	if !good {
		return
	}
	store, err := a.Storage()
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()

	var data any
	switch req.Action {
	case "upload":
		if platform.IsDir(req.Path) {
			data, err = store.UploadDirectory(ctx, req.Path, storage.PinMetadata{Name: filepath.Base(req.Path)})
		} else {
			data, err = store.UploadFile(ctx, req.Path)
		}
	case "download":
		if req.Extract {
			var files int
			files, err = store.DownloadPackage(ctx, req.ContentAddress, req.Output)
			data = gin.H{"path": req.Output, "files": files}
		} else {
			var size int64
			size, err = store.DownloadFile(ctx, req.ContentAddress, req.Output)
			data = gin.H{"path": req.Output, "size": size}
		}
	case "test":
		data = gin.H{"provider": store.Provider(), "reachable": store.TestConnection(ctx)}
	}
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	ok(c, http.StatusOK, data)
}

func (s *Server) storageStatus(c *gin.Context) {
	a, good := s.app(c, requestOptions{Network: c.Query("network")})
	if !good {
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	st, err := a.StorageStatus(ctx)
	if err != nil {
		fail(c, s.errs, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// initTargetRegistry is the init target that initializes the registry
// instead of scaffolding a package.
const initTargetRegistry = "registry"

type initRequest struct {
	Target   string         `json:"target" binding:"required"`
	Name     string         `json:"name"`
	Author   string         `json:"author"`
	Template string         `json:"template"`
	Wallet   string         `json:"wallet"`
	Options  requestOptions `json:"options"`
}

func (s *Server) initialize(c *gin.Context) {
	var req initRequest
	if !s.bind(c, &req) {
		return
	}
	c.Set(verboseKey, req.Options.Verbose)
	if req.Target != initTargetRegistry {
		name := req.Name
		if name == "" {
			name = filepath.Base(filepath.Clean(req.Target))
		}
		tmpl := req.Template
		if tmpl == "" {
			tmpl = scaffold.TemplateBasic
		}
		res, err := scaffold.Generate(tmpl, scaffold.NewData(name, req.Author), req.Target)
		if err != nil {
			fail(c, s.errs, err)
			return
		}
		ok(c, http.StatusOK, res)
		return
	}

	a, good := s.app(c, req.Options)
	if !good {
		return
	}
	ctx, cancel := s.ctx(c)
	defer cancel()
	res, err := a.InitRegistry(ctx, req.Wallet)
	switch {
	case err != nil:
		fail(c, s.errs, err)
	case res.Pending:
		ok(c, http.StatusAccepted, res)
	case !res.Success:
		failWith(c, http.StatusInternalServerError, errs.KindBlockchain, "transaction reverted: "+res.StatusMessage, res)
	default:
		ok(c, http.StatusOK, res)
	}
}

func confirmer(confirm bool) publish.Confirmer {
	if confirm {
		return publish.AutoConfirm
	}
	return publish.Decline
}

func parseAmount(field, s string) (uint64, error) {
	v, err := units.Parse(s)
	if err != nil {
		return 0, errs.Wrap(errs.KindValidation, err, "invalid %s", field).With(field, s)
	}
	return v, nil
}
