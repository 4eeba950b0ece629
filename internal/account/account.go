package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexbilevskiy/tgdesk/internal/backend"
	"github.com/alexbilevskiy/tgdesk/internal/chatlist"
	"github.com/alexbilevskiy/tgdesk/internal/config"
	"github.com/alexbilevskiy/tgdesk/internal/db"
	"github.com/alexbilevskiy/tgdesk/internal/dispatcher"
	"github.com/alexbilevskiy/tgdesk/internal/history"
	"github.com/alexbilevskiy/tgdesk/internal/marshal"
	"github.com/alexbilevskiy/tgdesk/internal/metrics"
	"github.com/alexbilevskiy/tgdesk/internal/notify"
	"github.com/alexbilevskiy/tgdesk/internal/tdlib"
	"github.com/alexbilevskiy/tgdesk/internal/users"
)

// Deps are the outside-world collaborators of an Account. Zero values fall
// back to in-memory or logging implementations.
type Deps struct {
	Handle   backend.Handle
	Store    db.FolderStore
	Notifier notify.Notifier
	Log      *slog.Logger
	Metrics  *metrics.Metrics
}

// Account is built once at startup and owns every component. Its exported
// components, except Dispatcher and Loop, belong to the presentation
// goroutine: touch them only from tasks run by Loop.
type Account struct {
	log     *slog.Logger
	Metrics *metrics.Metrics

	Loop       *marshal.Loop
	Dispatcher *dispatcher.Dispatcher
	Users      *users.Directory
	Chats      *chatlist.Synchronizer
	History    *history.Loader

	caller  *uiCaller
	store   db.FolderStore
	folders *db.FolderWriter

	auth    tdlib.AuthState
	lastErr error
	redraw  func()
}

func NewAccount(cfg *config.Config, deps Deps) *Account {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	store := deps.Store
	if store == nil {
		store = &db.MemoryFolderStore{}
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(log)
	}

	a := &Account{
		log:     log.With("component", "account"),
		Metrics: m,
		store:   store,
		folders: db.NewFolderWriter(store, log),
	}
	a.Loop = marshal.New(m)
	a.Dispatcher = dispatcher.New(deps.Handle, a.onPush,
		dispatcher.WithPollTimeout(time.Duration(cfg.PollTimeout)),
		dispatcher.WithLogger(log),
		dispatcher.WithMetrics(m),
		dispatcher.WithGracefulClose(),
	)
	a.caller = &uiCaller{d: a.Dispatcher, loop: a.Loop}
	a.Users = users.New(a.caller,
		users.WithNegativeCaching(cfg.NegativeUserCache),
		users.WithLogger(log),
		users.WithMetrics(m),
	)
	a.Chats = chatlist.New(a.caller, a.Users,
		chatlist.WithPageSize(cfg.ChatPageSize),
		chatlist.WithNotifier(notifier),
		chatlist.WithLogger(log),
		chatlist.WithMetrics(m),
		chatlist.WithFoldersHook(a.folders.Save),
		chatlist.WithChangeHook(a.changed),
	)
	a.History = history.New(a.caller, a.Users, a.Chats,
		history.WithPageSize(cfg.HistoryPageSize),
		history.WithLogger(log),
		history.WithMetrics(m),
		history.WithChangeHook(a.changed),
		history.WithErrorHook(a.reportError),
	)

	return a
}

// SetRedraw installs the hook called on the presentation goroutine whenever
// visible state changed. Call it before Start.
func (a *Account) SetRedraw(fn func()) {
	a.redraw = fn
}

// Start seeds the folder list remembered from the last session, starts
// polling and asks for the authorization state, which triggers the first
// chat list load once the backend is ready.
func (a *Account) Start(ctx context.Context) {
	folders, err := a.store.LoadChatFolders(ctx)
	if err != nil {
		a.log.Warn("failed to load saved chat folders", "error", err)
	} else if len(folders) > 0 {
		a.Loop.Post(func() {
			a.Chats.SeedFolders(folders)
			a.changed()
		})
	}

	a.Dispatcher.Start()
	a.Loop.Post(func() {
		err := a.caller.Call(tdlib.GetAuthorizationState{}, a.route)
		if err != nil {
			a.log.Error("failed to request authorization state", "error", err)
		}
	})
}

// RunFolderWriter persists folder lists until ctx is done.
func (a *Account) RunFolderWriter(ctx context.Context) error {
	return a.folders.Run(ctx)
}

// Shutdown stops the dispatcher, dropping unanswered requests, and closes
// the loop so queued tasks never run.
func (a *Account) Shutdown(ctx context.Context) error {
	err := a.Dispatcher.Shutdown(ctx)
	a.Loop.Close()
	if err != nil {
		return fmt.Errorf("failed to stop dispatcher: %w", err)
	}

	return nil
}

func (a *Account) AuthState() tdlib.AuthState {
	return a.auth
}

// LastError returns the last error worth showing to the user.
func (a *Account) LastError() error {
	return a.lastErr
}

func (a *Account) ClearError() {
	a.lastErr = nil
}

// onPush runs on the polling goroutine.
func (a *Account) onPush(resp tdlib.Response) {
	a.Loop.Post(func() { a.route(resp.Payload) })
}

func (a *Account) route(p tdlib.Payload) {
	switch upd := p.(type) {
	case *tdlib.UpdateAuthorizationState:
		a.setAuth(upd.State)
	case *tdlib.AuthorizationState:
		a.setAuth(upd.State)

	case *tdlib.UpdateUser:
		if upd.User == nil {
			return
		}
		a.Users.Put(upd.User)
		a.Chats.UserChanged(upd.User.ID)
		a.changed()
	case *tdlib.UpdateUserStatus:
		if a.Users.SetStatus(upd.UserID, upd.Status) {
			a.Chats.UserChanged(upd.UserID)
		}

	case *tdlib.UpdateNewMessage:
		a.Chats.Apply(upd)
		a.History.Append(upd.Message)
	case *tdlib.UpdateMessageContent:
		a.Chats.Apply(upd)
		a.History.UpdateContent(upd.ChatID, upd.MessageID, upd.NewContent)

	case *tdlib.Error:
		a.log.Warn("backend error", "code", upd.Code, "error", upd.Message)
	case *tdlib.Unknown:
		if upd.Err != nil {
			a.log.Warn("undecodable update", "type", upd.Type, "error", upd.Err)
			return
		}
		a.log.Debug("unhandled update", "type", upd.Type)

	default:
		if !a.Chats.Apply(p) {
			a.log.Debug("ignored update", "payload", fmt.Sprintf("%T", p))
		}
	}
}

func (a *Account) setAuth(state tdlib.AuthState) {
	if state == a.auth {
		return
	}
	a.log.Info("authorization state", "state", state)
	a.auth = state
	if state == tdlib.AuthReady {
		a.Chats.SelectList(a.Chats.ActiveList())
	}
	a.changed()
}

func (a *Account) changed() {
	if a.redraw != nil {
		a.redraw()
	}
}

func (a *Account) reportError(err error) {
	a.log.Warn("user visible error", "error", err)
	a.lastErr = err
	a.changed()
}
