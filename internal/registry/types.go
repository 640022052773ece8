package registry

import "time"

// Package kinds known to the registry. Other values are accepted and stored
// lower-cased.
const (
	KindLibrary    = "library"
	KindToken      = "token"
	KindDefi       = "defi"
	KindNFT        = "nft"
	KindGovernance = "governance"
	KindUtility    = "utility"
)

// Kinds lists the known package kinds.
var Kinds = []string{KindLibrary, KindToken, KindDefi, KindNFT, KindGovernance, KindUtility}

// PackageMetadata is one published (name, version) record. Records are
// immutable; a new version is a new record.
type PackageMetadata struct {
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	Publisher        string   `json:"publisher"`
	ContentAddress   string   `json:"contentAddress"`
	Endorsements     []string `json:"endorsements"`
	TimestampSeconds uint64   `json:"timestamp"`
	Kind             string   `json:"packageType"`
	DownloadCount    uint64   `json:"downloadCount"`
	TotalTips        uint64   `json:"totalTips"`
	Tags             []string `json:"tags"`
	Description      string   `json:"description"`
	Homepage         *string  `json:"homepage,omitempty"`
	Repository       *string  `json:"repository,omitempty"`
	License          *string  `json:"license,omitempty"`
}

// PublishedAt returns the registration time.
func (p *PackageMetadata) PublishedAt() time.Time {
	return time.Unix(int64(p.TimestampSeconds), 0).UTC()
}

// Stats is the registry-wide aggregate.
type Stats struct {
	TotalPackages  uint64 `json:"totalPackages"`
	TotalEndorsers uint64 `json:"totalEndorsers"`
	TotalDownloads uint64 `json:"totalDownloads"`
	TotalTips      uint64 `json:"totalTips"`
}

// EndorserRecord describes a registered endorser.
type EndorserRecord struct {
	Address          string `json:"address"`
	StakeAmount      uint64 `json:"stakeAmount"`
	IsActive         bool   `json:"isActive"`
	Reputation       uint64 `json:"reputation"`
	PackagesEndorsed uint64 `json:"packagesEndorsed"`
	RegisteredAt     uint64 `json:"registeredAt"`
}

// TransactionResult is the outcome of one write after the wait. Pending is
// set when the confirmation bound elapsed before the ledger answered; the
// write may still commit.
type TransactionResult struct {
	TransactionID string `json:"transactionId"`
	Success       bool   `json:"success"`
	Pending       bool   `json:"pending,omitempty"`
	StatusMessage string `json:"statusMessage"`
}

// PublishParams are the arguments of publish_package.
type PublishParams struct {
	Name           string
	Version        string
	ContentAddress string
	Kind           string
	Description    string
	Tags           []string
	Homepage       string
	Repository     string
	License        string
}
