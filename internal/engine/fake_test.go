package engine

import (
	"context"
	"sync"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/tmux"
)

// rename is one recorded call. An empty Title stands for RestoreAutoRename.
type rename struct {
	Window tmux.WindowID
	Title  string
}

// fakeClient records renames and serves a settable pane listing.
type fakeClient struct {
	mu        sync.Mutex
	listing   string
	listErr   error
	renameErr error
	renames   []rename
}

func (f *fakeClient) ListPanes(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listing, f.listErr
}

func (f *fakeClient) RenameWindow(_ context.Context, w tmux.WindowID, t string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	f.renames = append(f.renames, rename{Window: w, Title: t})
	return nil
}

func (f *fakeClient) RestoreAutoRename(_ context.Context, w tmux.WindowID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	f.renames = append(f.renames, rename{Window: w})
	return nil
}

func (f *fakeClient) Attach(context.Context, tmux.SessionID) (tmux.Stream, error) {
	return nil, tmux.ErrCommandFailed
}

func (f *fakeClient) setListing(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listing = s
}

func (f *fakeClient) setRenameErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renameErr = err
}

func (f *fakeClient) recorded() []rename {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rename(nil), f.renames...)
}
