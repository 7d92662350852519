package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/mainlinehq/mainline/cmd/mainline/cli/audit"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/config"
	"github.com/mainlinehq/mainline/cmd/mainline/cli/logging"
)

// CleanupOptions configures Cleanup.
type CleanupOptions struct {
	// DryRun reports what would be removed without removing anything.
	DryRun bool

	// Days overrides the session age threshold (default from config TTL).
	Days int
}

// CleanupReport is the Data payload of Cleanup's QueryResult.
type CleanupReport struct {
	OrphanBranches  []string `json:"orphan_branches,omitempty"`
	DeletedSessions []string `json:"deleted_sessions,omitempty"`
	ReclaimedLocks  []string `json:"reclaimed_locks,omitempty"`
	DryRun          bool     `json:"dry_run"`
}

// Cleanup fast-forwards the default branch and removes leftovers: local
// branches with no active session, terminal or expired sessions past the age
// threshold, and stale lock files.
func (o *Orchestrator) Cleanup(ctx context.Context, opts CleanupOptions) (*QueryResult, error) {
	res := &QueryResult{}
	ctx = logging.WithOperation(ctx, "cleanup")
	report := &CleanupReport{DryRun: opts.DryRun}
	res.Data = report

	ttl := o.cfg.SessionTTL()
	if opts.Days > 0 {
		ttl = time.Duration(opts.Days) * 24 * time.Hour
	}

	if !opts.DryRun {
		if err := o.git.CheckoutBranch(ctx, o.cfg.DefaultBranch); err != nil {
			res.Errors = append(res.Errors, err.Error())
			return res, err
		}
		if err := o.git.Pull(ctx, o.cfg.Remote, o.cfg.DefaultBranch); err != nil {
			res.Warnings = append(res.Warnings, "fast-forward "+o.cfg.DefaultBranch+": "+err.Error())
		}
	}

	// Orphan branches: local branches no non-terminal session owns.
	branches, err := o.git.LocalBranches(ctx)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	active, err := o.store.List(false)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	owned := map[string]bool{o.cfg.DefaultBranch: true, "master": true}
	for _, s := range active {
		owned[s.BranchName] = true
	}
	for _, b := range branches {
		if owned[b] {
			continue
		}
		report.OrphanBranches = append(report.OrphanBranches, b)
		if opts.DryRun {
			continue
		}
		if err := o.git.DeleteBranch(ctx, b, true); err != nil {
			res.Warnings = append(res.Warnings, "delete branch "+b+": "+err.Error())
		}
	}

	// Old sessions: terminal, or expired non-terminal, past the threshold.
	all, err := o.store.List(true)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	now := o.now().UTC()
	cutoff := now.Add(-ttl)
	for _, s := range all {
		old := s.UpdatedAt.Before(cutoff)
		if !(old && (s.IsTerminal() || s.Expired(now))) {
			continue
		}
		report.DeletedSessions = append(report.DeletedSessions, s.ID)
		if opts.DryRun {
			continue
		}
		if err := o.store.Delete(s.ID); err != nil {
			res.Warnings = append(res.Warnings, "delete session "+s.ID+": "+err.Error())
			continue
		}
		o.record(ctx, audit.Entry{
			Operation: "cleanup", Event: "session_deleted",
			SessionID: s.ID, Branch: s.BranchName,
		})
	}

	// Stale locks left by crashed processes.
	if !opts.DryRun {
		reclaimed, err := o.store.ReclaimStaleLocks(config.DefaultStaleLockThreshold)
		if err != nil {
			res.Warnings = append(res.Warnings, "reclaim locks: "+err.Error())
		}
		report.ReclaimedLocks = reclaimed
	}

	res.Success = true
	res.Message = fmt.Sprintf("%d orphan branch(es), %d old session(s), %d stale lock(s)",
		len(report.OrphanBranches), len(report.DeletedSessions), len(report.ReclaimedLocks))
	return res, nil
}
