package common

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultWhitelist restricts tesseract to characters that appear in item names.
const DefaultWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789- '&/:" +
	"ÀÁÂÃÄÅàáâãäåÈÉÊËèéêëÌÍÎÏìíîïÒÓÔÕÖòóôõöÙÚÛÜùúûüÝýÿŸÑñÇç"

// Setting keys. Environment variables and settings.json share these names.
const (
	KeyItemsFile           = "RL_ITEMS_FILE"
	KeyHistoryDB           = "RL_HISTORY_DB"
	KeyLogLevel            = "RL_LOG_LEVEL"
	KeyLogFormat           = "RL_LOG_FORMAT"
	KeyLogToFile           = "RL_LOG_TO_FILE"
	KeyLogFile             = "RL_LOG_FILE"
	KeyDebugDumpImages     = "RL_DEBUG_DUMP_IMAGES"
	KeyDebugDumpAlways     = "RL_DEBUG_DUMP_ALWAYS"
	KeyDebugMinLength      = "RL_DEBUG_MIN_LENGTH"
	KeyDebugDir            = "RL_DEBUG_DIR"
	KeyDebugMaxImages      = "RL_DEBUG_MAX_IMAGES"
	KeyDebugImageFormat    = "RL_DEBUG_IMAGE_FORMAT"
	KeyDebugJPEGQuality    = "RL_DEBUG_JPEG_QUALITY"
	KeyTesseractCmd        = "RL_TESSERACT_CMD"
	KeyTessdataDir         = "RL_TESSDATA_DIR"
	KeyOCRLang             = "RL_OCR_LANG"
	KeyOCROEM              = "RL_OCR_OEM"
	KeyOCRPSM              = "RL_OCR_PSM"
	KeyOCRWhitelist        = "RL_OCR_WHITELIST"
	KeyOCRMaxAttempts      = "RL_OCR_MAX_ATTEMPTS"
	KeyOCRBackoff          = "RL_OCR_BACKOFF"
	KeyMatchThreshold      = "RL_MATCH_THRESHOLD"
	KeyColorShadeTolerance = "RL_COLOR_SHADE_TOLERANCE"
	KeyDropCheckTolerance  = "RL_DROP_CHECK_TOLERANCE"
	KeyOpenButtonTolerance = "RL_OPEN_BUTTON_TOLERANCE"
)

var defaults = map[string]any{
	KeyItemsFile:           "items.txt",
	KeyHistoryDB:           "",
	KeyLogLevel:            "INFO",
	KeyLogFormat:           "text",
	KeyLogToFile:           false,
	KeyLogFile:             "",
	KeyDebugDumpImages:     false,
	KeyDebugDumpAlways:     false,
	KeyDebugMinLength:      0,
	KeyDebugDir:            "debug_images",
	KeyDebugMaxImages:      0,
	KeyDebugImageFormat:    "PNG",
	KeyDebugJPEGQuality:    95,
	KeyTesseractCmd:        "tesseract",
	KeyTessdataDir:         "",
	KeyOCRLang:             "eng",
	KeyOCROEM:              3,
	KeyOCRPSM:              6,
	KeyOCRWhitelist:        DefaultWhitelist,
	KeyOCRMaxAttempts:      3,
	KeyOCRBackoff:          "200ms",
	KeyMatchThreshold:      0.6,
	KeyColorShadeTolerance: 10,
	KeyDropCheckTolerance:  10,
	KeyOpenButtonTolerance: 10,
}

// SettingKeys lists every recognised key, sorted.
func SettingKeys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSettingKey reports whether key is a recognised RL_* setting.
func IsSettingKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Config holds all application configuration
type Config struct {
	ItemsFile string
	HistoryDB string
	Log       LogConfig
	OCR       OCRConfig
	Debug     DebugConfig
	Match     MatchConfig
	Vision    VisionConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	ToFile bool
	File   string
}

// OCRConfig holds tesseract and retry configuration
type OCRConfig struct {
	Tesseract   string
	TessdataDir string
	Lang        string
	OEM         int
	PSM         int
	Whitelist   string
	MaxAttempts int
	Backoff     time.Duration
}

// DebugConfig controls debug image dumps
type DebugConfig struct {
	DumpImages  bool
	DumpAlways  bool
	MinLength   int
	Dir         string
	MaxImages   int
	ImageFormat string
	JPEGQuality int
}

// MatchConfig holds fuzzy matcher tuning
type MatchConfig struct {
	Threshold float64
}

// VisionConfig holds pixel-search tolerances
type VisionConfig struct {
	ColorShadeTolerance int
	DropCheckTolerance  int
	OpenButtonTolerance int
}

// LoadConfig resolves configuration from the environment, then the optional
// settings file, then defaults. A missing settings file is not an error.
func LoadConfig(settingsPath string) (*Config, error) {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(strings.ToLower(k), def)
	}
	v.AutomaticEnv()

	if settingsPath != "" {
		if _, err := os.Stat(settingsPath); err == nil {
			v.SetConfigFile(settingsPath)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, NewAppError(CodeConfig, "read "+settingsPath, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, NewAppError(CodeConfig, "stat "+settingsPath, err)
		}
	}

	r := reader{v: v}
	cfg := &Config{
		ItemsFile: r.str(KeyItemsFile),
		HistoryDB: r.str(KeyHistoryDB),
		Log: LogConfig{
			Level:  strings.ToUpper(r.str(KeyLogLevel)),
			Format: strings.ToLower(r.str(KeyLogFormat)),
			ToFile: r.boolean(KeyLogToFile),
			File:   r.str(KeyLogFile),
		},
		OCR: OCRConfig{
			Tesseract:   r.str(KeyTesseractCmd),
			TessdataDir: r.str(KeyTessdataDir),
			Lang:        r.str(KeyOCRLang),
			OEM:         r.integer(KeyOCROEM),
			PSM:         r.integer(KeyOCRPSM),
			Whitelist:   r.str(KeyOCRWhitelist),
			MaxAttempts: r.integer(KeyOCRMaxAttempts),
			Backoff:     r.duration(KeyOCRBackoff),
		},
		Debug: DebugConfig{
			DumpImages:  r.boolean(KeyDebugDumpImages),
			DumpAlways:  r.boolean(KeyDebugDumpAlways),
			MinLength:   r.integer(KeyDebugMinLength),
			Dir:         r.str(KeyDebugDir),
			MaxImages:   r.integer(KeyDebugMaxImages),
			ImageFormat: strings.ToUpper(r.str(KeyDebugImageFormat)),
			JPEGQuality: r.integer(KeyDebugJPEGQuality),
		},
		Match: MatchConfig{
			Threshold: r.float(KeyMatchThreshold),
		},
		Vision: VisionConfig{
			ColorShadeTolerance: r.integer(KeyColorShadeTolerance),
			DropCheckTolerance:  r.integer(KeyDropCheckTolerance),
			OpenButtonTolerance: r.integer(KeyOpenButtonTolerance),
		},
	}
	return cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field(KeyItemsFile, c.ItemsFile, Required)
	v.Field(KeyLogLevel, c.Log.Level, OneOf("DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"))
	v.Field(KeyLogFormat, c.Log.Format, OneOf("text", "json"))
	v.Field(KeyTesseractCmd, c.OCR.Tesseract, Required)
	v.Field(KeyOCRLang, c.OCR.Lang, Required)
	v.Field(KeyOCROEM, c.OCR.OEM, IntRange(0, 3))
	v.Field(KeyOCRPSM, c.OCR.PSM, IntRange(0, 13))
	v.Field(KeyOCRMaxAttempts, c.OCR.MaxAttempts, IntRange(1, 10))
	v.Field(KeyDebugMinLength, c.Debug.MinLength, IntRange(0, 1<<16))
	v.Field(KeyDebugMaxImages, c.Debug.MaxImages, IntRange(0, 1<<20))
	v.Field(KeyDebugImageFormat, c.Debug.ImageFormat, OneOf("PNG", "JPEG"))
	v.Field(KeyDebugJPEGQuality, c.Debug.JPEGQuality, IntRange(1, 100))
	v.Field(KeyMatchThreshold, c.Match.Threshold, FloatAbove(0, 1))
	v.Field(KeyColorShadeTolerance, c.Vision.ColorShadeTolerance, IntRange(0, 255))
	v.Field(KeyDropCheckTolerance, c.Vision.DropCheckTolerance, IntRange(0, 255))
	v.Field(KeyOpenButtonTolerance, c.Vision.OpenButtonTolerance, IntRange(0, 255))
	if c.OCR.Backoff < 0 {
		v.errors = append(v.errors, ValidationError{Field: KeyOCRBackoff, Value: c.OCR.Backoff, Message: "must not be negative"})
	}
	return v.Error()
}

// reader mirrors the getEnvAs* helpers: unparsable values fall back to the default.
type reader struct {
	v *viper.Viper
}

func (r reader) raw(key string) string {
	return strings.TrimSpace(r.v.GetString(strings.ToLower(key)))
}

func (r reader) str(key string) string {
	return r.raw(key)
}

func (r reader) boolean(key string) bool {
	switch strings.ToLower(r.raw(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off", "":
		return false
	}
	b, _ := defaults[key].(bool)
	return b
}

func (r reader) integer(key string) int {
	if n, err := strconv.Atoi(r.raw(key)); err == nil {
		return n
	}
	n, _ := defaults[key].(int)
	return n
}

func (r reader) float(key string) float64 {
	if f, err := strconv.ParseFloat(r.raw(key), 64); err == nil {
		return f
	}
	f, _ := defaults[key].(float64)
	return f
}

func (r reader) duration(key string) time.Duration {
	s := r.raw(key)
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	// bare numbers are milliseconds
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, _ := time.ParseDuration(defaults[key].(string))
	return d
}
