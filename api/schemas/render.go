package schemas

import (
	"time"
)

// -- Render Pipeline Schemas --

// ScriptKind classifies how a discovered script must be executed.
type ScriptKind string

const (
	// ScriptInline is a classic script whose source is embedded in the document.
	ScriptInline ScriptKind = "inline"
	// ScriptExternal is a classic script referenced by src.
	ScriptExternal ScriptKind = "external"
	// ScriptModule is an ES module (inline or external).
	ScriptModule ScriptKind = "module"
)

// ScriptDescriptor identifies one script discovered in the document, in
// document order. External and module scripts are fetched lazily, but initial
// execution always follows Order.
type ScriptDescriptor struct {
	Kind   ScriptKind `json:"kind"`
	Source string     `json:"source,omitempty"`
	URL    string     `json:"url,omitempty"`
	Order  int        `json:"order"`
	Async  bool       `json:"async,omitempty"`
	Defer  bool       `json:"defer,omitempty"`
}

// WaitStrategy selects how the engine decides the page has settled.
type WaitStrategy string

const (
	// WaitTimeout sleeps the full remaining budget and always reports a timeout.
	WaitTimeout WaitStrategy = "timeout"
	// WaitNetworkIdle settles once tracked async activity has been quiet for
	// the configured idle window.
	WaitNetworkIdle WaitStrategy = "networkidle"
)

// Default execution option values, applied by Normalize.
const (
	DefaultExecTimeout  = 15 * time.Second
	DefaultIdleTime     = 500 * time.Millisecond
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxScripts   = 50
)

// ExecutionOptions is the recognized configuration surface for one engine
// invocation.
type ExecutionOptions struct {
	ExecuteScripts  bool          `json:"executeScripts"`
	Timeout         time.Duration `json:"timeout"`
	WaitStrategy    WaitStrategy  `json:"waitStrategy"`
	IdleTime        time.Duration `json:"idleTime"`
	PollInterval    time.Duration `json:"pollInterval"`
	MaxScripts      int           `json:"maxScripts"`
	ForwardConsole  bool          `json:"forwardConsole"`
	PermissiveShims bool          `json:"permissiveShims"`
	DebugFetch      bool          `json:"debugFetch"`
	DebugProbes     bool          `json:"debugProbes"`
}

// DefaultExecutionOptions returns the options used when the caller provides none.
func DefaultExecutionOptions() ExecutionOptions {
	return ExecutionOptions{
		ExecuteScripts:  true,
		Timeout:         DefaultExecTimeout,
		WaitStrategy:    WaitNetworkIdle,
		IdleTime:        DefaultIdleTime,
		PollInterval:    DefaultPollInterval,
		MaxScripts:      DefaultMaxScripts,
		PermissiveShims: true,
	}
}

// Normalize fills zero values with defaults and clamps nonsense.
func (o *ExecutionOptions) Normalize() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultExecTimeout
	}
	if o.WaitStrategy != WaitTimeout && o.WaitStrategy != WaitNetworkIdle {
		o.WaitStrategy = WaitNetworkIdle
	}
	if o.IdleTime <= 0 {
		o.IdleTime = DefaultIdleTime
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxScripts <= 0 {
		o.MaxScripts = DefaultMaxScripts
	}
}

// ExecutionRequest is the immutable input to one engine invocation. The
// caller owns it; the engine borrows it for the duration of the call.
// Deadline, when zero, is derived from Options.Timeout at execution start.
// SetCookies carries the document response's Set-Cookie values; they seed
// document.cookie before any script runs.
type ExecutionRequest struct {
	FinalURL    string             `json:"finalUrl"`
	HTML        string             `json:"html"`
	Scripts     []ScriptDescriptor `json:"scripts"`
	SetCookies  []string           `json:"setCookies,omitempty"`
	Options     ExecutionOptions   `json:"options"`
	TotalBudget time.Duration      `json:"totalBudget"`
	Deadline    time.Time          `json:"deadline"`
}

// ConsoleEntry is one captured console call from the sandbox. Message for an
// Error argument includes the error's name, message, and any extra enumerable
// own properties rendered as a "props:" suffix.
type ConsoleEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Stages at which a ScriptError can be recorded.
const (
	StageBootstrap = "bootstrap"
	StageScript    = "script"
	StageWait      = "wait"
)

// ScriptError records a recoverable failure during one call. Execution
// continues after a script error; one failing script never aborts the run.
type ScriptError struct {
	Stage     string `json:"stage"`
	ScriptURL string `json:"scriptUrl,omitempty"`
	Message   string `json:"message"`
	Stack     string `json:"stack,omitempty"`
}

// ExecutionResult is what the engine hands back: a best-effort snapshot plus
// everything captured along the way. TimedOut reports that the budget expired
// before the page settled; it is informational, not an error. History is the
// sandbox's session history; its last entry is the page's logical location
// after any script-driven routing.
type ExecutionResult struct {
	Snapshot       string         `json:"snapshot"`
	ConsoleEntries []ConsoleEntry `json:"consoleEntries"`
	EngineErrors   []ScriptError  `json:"engineErrors"`
	History        []HistoryState `json:"history,omitempty"`
	TimedOut       bool           `json:"timedOut"`
}

// RenderTiming breaks the wall-clock cost of one render into phases.
type RenderTiming struct {
	FetchMs   int64 `json:"fetchMs"`
	ExecuteMs int64 `json:"executeMs"`
	TotalMs   int64 `json:"totalMs"`
	TimedOut  bool  `json:"timedOut"`
}

// PageMetadata is the document-level metadata extracted from the rendered DOM.
type PageMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Canonical   string `json:"canonical,omitempty"`
	Lang        string `json:"lang,omitempty"`
	OGTitle     string `json:"ogTitle,omitempty"`
	OGDesc      string `json:"ogDescription,omitempty"`
	OGImage     string `json:"ogImage,omitempty"`
}

// FeedRef is a discovered syndication feed candidate.
type FeedRef struct {
	URL   string `json:"url"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// RenderResult is the caller-facing merge of one full render: fetch,
// execution, and extraction.
type RenderResult struct {
	RenderID string         `json:"renderId"`
	URL      string         `json:"url"`
	FinalURL string         `json:"finalUrl"`
	Status   int            `json:"status"`
	HTML     string         `json:"html"`
	Console  []ConsoleEntry `json:"console,omitempty"`
	Errors   []ScriptError  `json:"errors,omitempty"`
	History  []HistoryState `json:"history,omitempty"`
	Timing   RenderTiming   `json:"timing"`
	Metadata *PageMetadata  `json:"metadata,omitempty"`
	Feeds    []FeedRef      `json:"feeds,omitempty"`
	Text     string         `json:"text,omitempty"`
}
