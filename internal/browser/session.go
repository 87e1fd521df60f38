// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghostpay/api/schemas"
	"github.com/xkilldash9x/ghostpay/internal/browser/cdpdoc"
	"github.com/xkilldash9x/ghostpay/internal/browser/stealth"
	"github.com/xkilldash9x/ghostpay/internal/config"
	"github.com/xkilldash9x/ghostpay/internal/dom"
	"github.com/xkilldash9x/ghostpay/internal/filler"
	"github.com/xkilldash9x/ghostpay/internal/generation"
	"github.com/xkilldash9x/ghostpay/internal/shim"
)

// NavigationPolicy decides outbound navigations.
type NavigationPolicy interface {
	Decide(ctx context.Context, url string) bool
}

// CompletionObserver receives every main-frame URL after it loads.
type CompletionObserver interface {
	Observe(ctx context.Context, url string) (schemas.Completion, bool)
}

// Mailbox receives payloads the page posts through the binding.
type Mailbox interface {
	Deliver(payload []byte)
}

// Runner runs the automation for one generation against a document.
type Runner interface {
	RunGeneration(ctx context.Context, doc dom.Document, gen generation.Generation, fc schemas.FillContext, onFilled func(filler.Report)) error
}

type attemptState struct {
	gen      generation.Generation
	fc       schemas.FillContext
	scriptID page.ScriptIdentifier
}

type pageRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session is the payment view: one Chrome tab whose navigations are governed by the
// navigation policy and whose documents are filled by the engine.
type Session struct {
	id      string
	cfg     config.BrowserConfig
	logger  *zap.Logger
	policy  NavigationPolicy
	monitor CompletionObserver
	mailbox Mailbox
	runner  Runner

	ctx    context.Context
	cancel context.CancelFunc
	// exec runs CDP actions against the tab.
	exec func(ctx context.Context, actions ...chromedp.Action) error

	mu        sync.Mutex
	mainFrame cdp.FrameID
	// mainURL is the committed main-frame URL; the monitor sees it once the load completes.
	mainURL string
	attempt *attemptState
	run     *pageRun
	closed  bool

	wg sync.WaitGroup
}

// NewSession creates a Session. Open starts the browser.
func NewSession(cfg config.BrowserConfig, policy NavigationPolicy, monitor CompletionObserver, mailbox Mailbox, runner Runner, logger *zap.Logger) *Session {
	id := uuid.NewString()
	s := &Session{
		id:      id,
		cfg:     cfg,
		logger:  logger.Named("browser").With(zap.String("session_id", id)),
		policy:  policy,
		monitor: monitor,
		mailbox: mailbox,
		runner:  runner,
	}
	s.exec = s.runActions
	return s
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string { return s.id }

// Open launches Chrome, creates the tab and installs the interception hooks.
func (s *Session) Open(ctx context.Context) error {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), DefaultAllocatorOptions(s.cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(s.logger.Sugar().Debugf))
	s.ctx = tabCtx
	s.cancel = func() {
		tabCancel()
		allocCancel()
	}

	// Ensure the target (tab) is created and CDP is connected.
	if err := chromedp.Run(tabCtx); err != nil {
		s.cancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}
	chromedp.ListenTarget(tabCtx, s.handleEvent)

	persona, err := stealth.Apply(stealth.PersonaFromConfig(s.cfg), s.logger)
	if err != nil {
		s.cancel()
		return err
	}
	tasks := chromedp.Tasks{
		persona,
		runtime.AddBinding(shim.BindingName),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{{
			URLPattern:   "*",
			ResourceType: network.ResourceTypeDocument,
			RequestStage: fetch.RequestStageRequest,
		}}),
	}
	if s.cfg.DisableCache {
		tasks = append(tasks, network.Enable(), network.SetCacheDisabled(true))
	}
	if err := s.exec(ctx, tasks); err != nil {
		s.cancel()
		return fmt.Errorf("failed to run session initialization tasks: %w", err)
	}
	s.logger.Info("Payment view opened.")
	return nil
}

// Pay injects the bootstrap for fc and loads the payment page. The engine runs for gen on
// every document the page loads until End or Close.
func (s *Session) Pay(ctx context.Context, gen generation.Generation, fc schemas.FillContext) error {
	script, err := shim.BuildScript(fc)
	if err != nil {
		return err
	}

	s.End(ctx)

	var scriptID page.ScriptIdentifier
	err = s.exec(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		scriptID, err = page.AddScriptToEvaluateOnNewDocument(script).Do(c)
		return err
	}))
	if err != nil {
		return fmt.Errorf("could not inject persistent script: %w", err)
	}

	s.mu.Lock()
	s.attempt = &attemptState{gen: gen, fc: fc, scriptID: scriptID}
	s.mu.Unlock()

	navCtx := ctx
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	s.logger.Info("Loading payment page.", zap.Uint64("generation", uint64(gen)))
	if err := s.exec(navCtx, chromedp.Navigate(s.cfg.TargetURL)); err != nil {
		return fmt.Errorf("failed to load payment page: %w", err)
	}
	return nil
}

// End stops the current page run and forgets the attempt. Later documents are left alone.
func (s *Session) End(ctx context.Context) {
	s.mu.Lock()
	a := s.attempt
	s.attempt = nil
	run := s.run
	s.run = nil
	s.mu.Unlock()

	stopRun(run)
	if a != nil && a.scriptID != "" {
		if err := s.exec(ctx, page.RemoveScriptToEvaluateOnNewDocument(a.scriptID)); err != nil {
			s.logger.Debug("Could not remove bootstrap script.", zap.Error(err))
		}
	}
}

// Close tears the tab and the browser down and waits for event handlers to finish.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.End(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// handleEvent runs on chromedp's event loop and must not block on CDP calls.
func (s *Session) handleEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name == shim.BindingName && s.mailbox != nil {
			s.mailbox.Deliver([]byte(ev.Payload))
		}
	case *fetch.EventRequestPaused:
		s.spawn(func() { s.handleRequestPaused(ev) })
	case *page.EventFrameRequestedNavigation:
		s.spawn(func() { s.handleRequestedNavigation(ev) })
	case *page.EventFrameNavigated:
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		s.mu.Lock()
		s.mainFrame = ev.Frame.ID
		s.mainURL = ev.Frame.URL + ev.Frame.URLFragment
		s.mu.Unlock()
	case *page.EventNavigatedWithinDocument:
		s.mu.Lock()
		main := s.mainFrame
		s.mu.Unlock()
		if ev.FrameID != main {
			return
		}
		// Same-document changes fire no load event.
		url := ev.URL
		s.spawn(func() { s.observe(url) })
	case *page.EventLoadEventFired:
		s.mu.Lock()
		url := s.mainURL
		s.mu.Unlock()
		if url != "" {
			s.spawn(func() { s.observe(url) })
		}
		s.spawn(s.startRun)
	}
}

func (s *Session) spawn(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// handleRequestPaused applies the navigation policy to document requests.
func (s *Session) handleRequestPaused(ev *fetch.EventRequestPaused) {
	url := ""
	if ev.Request != nil {
		url = ev.Request.URL + ev.Request.URLFragment
	}
	var action chromedp.Action = fetch.ContinueRequest(ev.RequestID)
	if !s.policy.Decide(s.ctx, url) {
		action = fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient)
	}
	if err := s.exec(s.ctx, action); err != nil {
		s.logger.Debug("Could not resolve paused request.", zap.Error(err))
	}
}

// handleRequestedNavigation covers schemes that never reach the network stack. Web schemes
// are left to the request interception above. A refused navigation is stopped so Chrome
// does not hand the URL to its own external protocol handler.
func (s *Session) handleRequestedNavigation(ev *page.EventFrameRequestedNavigation) {
	if isWebScheme(ev.URL) {
		return
	}
	if s.policy.Decide(s.ctx, ev.URL) {
		return
	}
	if err := s.exec(s.ctx, page.StopLoading()); err != nil {
		s.logger.Debug("Could not stop refused navigation.", zap.String("url", ev.URL), zap.Error(err))
	}
}

func (s *Session) observe(url string) {
	if s.monitor == nil {
		return
	}
	if c, ok := s.monitor.Observe(s.ctx, url); ok {
		s.logger.Info("Success page reached.", zap.String("attempt", c.AttemptID))
	}
}

// startRun replaces the engine run of the previous document with one for the new document.
func (s *Session) startRun() {
	s.mu.Lock()
	a := s.attempt
	if a == nil || s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.run
	ctx, cancel := context.WithCancel(s.ctx)
	run := &pageRun{cancel: cancel, done: make(chan struct{})}
	s.run = run
	s.mu.Unlock()

	stopRun(prev)
	defer close(run.done)

	if s.cfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.SettleDelay):
		}
	}

	doc := cdpdoc.New(cdpdoc.NewCDPRuntime(s.exec))
	err := s.runner.RunGeneration(ctx, doc, a.gen, a.fc, func(r filler.Report) {
		s.logger.Info("Form filled.",
			zap.String("layout", string(r.Layout)),
			zap.Strings("filled", roles(r.Filled)),
			zap.Strings("skipped", roles(r.Skipped)))
	})
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("Automation run failed.", zap.Error(err))
	}
}

func stopRun(r *pageRun) {
	if r == nil {
		return
	}
	r.cancel()
	<-r.done
}

// runActions executes chromedp actions inside the tab, bounded by both the session
// lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx == nil {
		return fmt.Errorf("browser session is not open")
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func isWebScheme(url string) bool {
	lowered := strings.ToLower(strings.TrimSpace(url))
	for _, p := range []string{"http:", "https:", "about:", "data:", "blob:", "javascript:"} {
		if strings.HasPrefix(lowered, p) {
			return true
		}
	}
	return false
}

func roles(rs []schemas.Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}
