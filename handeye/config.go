package handeye

// Config represents the full configuration file
type Config struct {
	Inputs    InputsConfig    `yaml:"inputs" json:"inputs"`
	Methods   []string        `yaml:"methods,omitempty" json:"methods,omitempty"` // Method names or aliases; empty runs all
	Selection SelectionConfig `yaml:"selection,omitempty" json:"selection,omitempty"`
	MQTT      MQTTConfig      `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	HTTP      HTTPConfig      `yaml:"http,omitempty" json:"http,omitempty"`
	Render    RenderConfig    `yaml:"render,omitempty" json:"render,omitempty"`
	Units     UnitsConfig     `yaml:"units,omitempty" json:"units,omitempty"`
	CachePath string          `yaml:"cachePath,omitempty" json:"cachePath,omitempty"` // Result cache file (default .calibration-cache.json)
}

// InputsConfig locates the two pose sequences, either on disk or behind an
// HTTP endpoint serving the pose file format.
type InputsConfig struct {
	FileA string `yaml:"fileA,omitempty" json:"fileA,omitempty"`
	FileB string `yaml:"fileB,omitempty" json:"fileB,omitempty"`
	URLA  string `yaml:"urlA,omitempty" json:"urlA,omitempty"`
	URLB  string `yaml:"urlB,omitempty" json:"urlB,omitempty"`
}

// SelectionConfig overrides the motion pair selection defaults.
type SelectionConfig struct {
	MinRotationDeg *float64 `yaml:"minRotationDeg,omitempty" json:"minRotationDeg,omitempty"` // default 2.0
	FallbackToAll  *bool    `yaml:"fallbackToAll,omitempty" json:"fallbackToAll,omitempty"`   // default true
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
	RequestTopic  string `yaml:"requestTopic,omitempty" json:"requestTopic,omitempty"` // Topic carrying CalibrationJob payloads
}

// HTTPConfig holds the HTTP server settings
type HTTPConfig struct {
	Port int `yaml:"port,omitempty" json:"port,omitempty"`
}

// RenderConfig holds the image output settings
type RenderConfig struct {
	GridSpacing       float64 `yaml:"gridSpacing,omitempty" json:"gridSpacing,omitempty"`             // Grid line spacing in translation units (default 100)
	Resolution        float64 `yaml:"resolution,omitempty" json:"resolution,omitempty"`               // Raster DPI (default 300)
	SimplifyTolerance float64 `yaml:"simplifyTolerance,omitempty" json:"simplifyTolerance,omitempty"` // Douglas-Peucker tolerance for drawn paths
}

// UnitsConfig names the length unit of the pose files
type UnitsConfig struct {
	Translation string `yaml:"translation,omitempty" json:"translation,omitempty"`
}

const (
	DefaultGridSpacing = 100.0
	DefaultResolution  = 300.0
	DefaultUnit        = "mm"
	DefaultHTTPPort    = 4040
)

// SelectionOptions returns the configured selection options with defaults
// filled in.
func (c *Config) SelectionOptions() SelectionOptions {
	opts := DefaultSelectionOptions()
	if c == nil {
		return opts
	}
	if c.Selection.MinRotationDeg != nil {
		opts.MinRotationDeg = *c.Selection.MinRotationDeg
	}
	if c.Selection.FallbackToAll != nil {
		opts.FallbackToAll = *c.Selection.FallbackToAll
	}
	return opts
}

// SolveOptions converts the configuration into solver options.
func (c *Config) SolveOptions() []SolveOption {
	return []SolveOption{WithSelection(c.SelectionOptions())}
}

// MethodList returns the canonical method names to run. Empty means all.
func (c *Config) MethodList() []string {
	if c == nil || len(c.Methods) == 0 {
		return MethodNames()
	}
	return ResolveMethodAliases(c.Methods)
}

// TranslationUnit returns the configured length unit, "mm" by default.
func (c *Config) TranslationUnit() string {
	if c == nil || c.Units.Translation == "" {
		return DefaultUnit
	}
	return c.Units.Translation
}

// GridSpacing returns the render grid spacing with its default applied.
func (c *Config) GridSpacing() float64 {
	if c == nil || c.Render.GridSpacing <= 0 {
		return DefaultGridSpacing
	}
	return c.Render.GridSpacing
}

// Resolution returns the raster DPI with its default applied.
func (c *Config) Resolution() float64 {
	if c == nil || c.Render.Resolution <= 0 {
		return DefaultResolution
	}
	return c.Render.Resolution
}

// HTTPPort returns the configured HTTP port, or DefaultHTTPPort.
func (c *Config) HTTPPort() int {
	if c == nil || c.HTTP.Port == 0 {
		return DefaultHTTPPort
	}
	return c.HTTP.Port
}
