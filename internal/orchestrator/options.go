package orchestrator

// DefaultMaxTurns caps delegated agents when the caller sets no limit.
const DefaultMaxTurns = 25

// DefaultMCPConfigName is the tool-configuration file looked up in a
// project's repository.
const DefaultMCPConfigName = ".mcp.json"

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	maxTurns      int
	mcpConfigName string
	fileExists    func(path string) bool
}

// WithMaxTurns sets the turn cap applied when DelegateOptions leaves it zero.
func WithMaxTurns(n int) Option {
	return func(o *orchestratorOptions) { o.maxTurns = n }
}

// WithMCPConfigName changes the repository file auto-resolved as the
// agent's tool configuration. An empty name disables the lookup.
func WithMCPConfigName(name string) Option {
	return func(o *orchestratorOptions) { o.mcpConfigName = name }
}

// withFileExists replaces the filesystem check, for tests.
func withFileExists(fn func(string) bool) Option {
	return func(o *orchestratorOptions) { o.fileExists = fn }
}
