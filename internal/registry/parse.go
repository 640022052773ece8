package registry

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/ledger"
)

// rawPackage is the registry's native encoding of PackageMetadata.
type rawPackage struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Publisher     string          `json:"publisher"`
	IPFSHash      string          `json:"ipfs_hash"`
	Endorsements  []string        `json:"endorsements"`
	Timestamp     json.RawMessage `json:"timestamp"`
	PackageType   string          `json:"package_type"`
	DownloadCount json.RawMessage `json:"download_count"`
	TotalTips     json.RawMessage `json:"total_tips"`
	Tags          []string        `json:"tags"`
	Description   string          `json:"description"`
	Homepage      json.RawMessage `json:"homepage"`
	Repository    json.RawMessage `json:"repository"`
	License       json.RawMessage `json:"license"`
}

type rawEndorser struct {
	Address          string          `json:"endorser_address"`
	StakeAmount      json.RawMessage `json:"stake_amount"`
	IsActive         bool            `json:"is_active"`
	Reputation       json.RawMessage `json:"reputation_score"`
	PackagesEndorsed json.RawMessage `json:"packages_endorsed"`
	RegisteredAt     json.RawMessage `json:"registered_at"`
}

func formatError(cause error, what string) *errs.Error {
	return errs.Wrap(errs.KindBlockchain, cause, "unexpected %s encoding", what)
}

// parseOption unwraps {"vec":[]} and {"vec":[v]}. A JSON null is treated as
// none; any other value is taken as a present bare value.
func parseOption(raw json.RawMessage) (json.RawMessage, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}
	if trimmed[0] != '{' {
		return trimmed, true, nil
	}
	var opt struct {
		Vec []json.RawMessage `json:"vec"`
	}
	if err := json.Unmarshal(trimmed, &opt); err != nil {
		return nil, false, formatError(err, "option")
	}
	switch len(opt.Vec) {
	case 0:
		if !bytes.Contains(trimmed, []byte(`"vec"`)) {
			// A struct value rather than an option wrapper.
			return trimmed, true, nil
		}
		return nil, false, nil
	case 1:
		return opt.Vec[0], true, nil
	default:
		return nil, false, formatError(nil, "option with more than one element")
	}
}

func parseOptionalString(raw json.RawMessage) (*string, error) {
	v, ok, err := parseOption(raw)
	if err != nil || !ok {
		return nil, err
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil, formatError(err, "optional string")
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

// decodeHexString turns a hex vector<u8> into its UTF-8 text. Values that
// are not 0x-prefixed hex, or do not decode to text, are returned as is.
func decodeHexString(s string) string {
	if !strings.HasPrefix(s, "0x") {
		return s
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil || !utf8.Valid(b) {
		return s
	}
	return string(b)
}

// encodeHexString is the inverse of decodeHexString for call arguments.
func encodeHexString(s string) string {
	return "0x" + hex.EncodeToString([]byte(s))
}

func parseU64Field(raw json.RawMessage, what string) (uint64, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return 0, nil
	}
	n, err := ledger.ParseU64(raw)
	if err != nil {
		return 0, formatError(err, what)
	}
	return n, nil
}

func parsePackage(raw json.RawMessage) (*PackageMetadata, error) {
	var rp rawPackage
	if err := json.Unmarshal(raw, &rp); err != nil {
		return nil, formatError(err, "package metadata")
	}
	p := &PackageMetadata{
		Name:           rp.Name,
		Version:        rp.Version,
		Publisher:      rp.Publisher,
		ContentAddress: decodeHexString(rp.IPFSHash),
		Endorsements:   rp.Endorsements,
		Kind:           strings.ToLower(rp.PackageType),
		Tags:           rp.Tags,
		Description:    rp.Description,
	}
	if p.Endorsements == nil {
		p.Endorsements = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	var err error
	if p.TimestampSeconds, err = parseU64Field(rp.Timestamp, "timestamp"); err != nil {
		return nil, err
	}
	if p.DownloadCount, err = parseU64Field(rp.DownloadCount, "download count"); err != nil {
		return nil, err
	}
	if p.TotalTips, err = parseU64Field(rp.TotalTips, "total tips"); err != nil {
		return nil, err
	}
	if p.Homepage, err = parseOptionalString(rp.Homepage); err != nil {
		return nil, err
	}
	if p.Repository, err = parseOptionalString(rp.Repository); err != nil {
		return nil, err
	}
	if p.License, err = parseOptionalString(rp.License); err != nil {
		return nil, err
	}
	return p, nil
}

func parsePackageList(raw json.RawMessage) ([]PackageMetadata, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, formatError(err, "package list")
	}
	out := make([]PackageMetadata, 0, len(items))
	for _, it := range items {
		p, err := parsePackage(it)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func parseStrings(raw json.RawMessage) ([]string, error) {
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, formatError(err, "string list")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func parseStats(values []json.RawMessage) (*Stats, error) {
	if len(values) != 4 {
		return nil, errs.New(errs.KindBlockchain, "registry stats: expected 4 values, got %d", len(values))
	}
	var s Stats
	fields := []*uint64{&s.TotalPackages, &s.TotalEndorsers, &s.TotalDownloads, &s.TotalTips}
	for i, f := range fields {
		n, err := parseU64Field(values[i], "registry stats")
		if err != nil {
			return nil, err
		}
		*f = n
	}
	return &s, nil
}

func parseEndorser(raw json.RawMessage) (*EndorserRecord, error) {
	var re rawEndorser
	if err := json.Unmarshal(raw, &re); err != nil {
		return nil, formatError(err, "endorser")
	}
	e := &EndorserRecord{Address: re.Address, IsActive: re.IsActive}
	var err error
	if e.StakeAmount, err = parseU64Field(re.StakeAmount, "stake amount"); err != nil {
		return nil, err
	}
	if e.Reputation, err = parseU64Field(re.Reputation, "reputation"); err != nil {
		return nil, err
	}
	if e.PackagesEndorsed, err = parseU64Field(re.PackagesEndorsed, "packages endorsed"); err != nil {
		return nil, err
	}
	if e.RegisteredAt, err = parseU64Field(re.RegisteredAt, "registered at"); err != nil {
		return nil, err
	}
	return e, nil
}
