package config

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// PopupAnimation selects how the balloon popup appears on screen.
type PopupAnimation string

// BackoffKind selects the reconnect delay strategy.
type BackoffKind string

const (
	PopupAnimationNone   PopupAnimation = "None"
	PopupAnimationFade   PopupAnimation = "Fade"
	PopupAnimationSlide  PopupAnimation = "Slide"
	PopupAnimationScroll PopupAnimation = "Scroll"

	BackoffConstant    BackoffKind = "constant"
	BackoffExponential BackoffKind = "exponential"

	MinDisplayHistoryCount     = 25
	MaxDisplayHistoryCount     = 200
	DefaultDisplayHistoryCount = 50
	DefaultMaxRetries          = 5
	DefaultTargetURI           = "ws://localhost:8080/jenkins"
	DefaultPopupTimeout        = 5 * time.Second
	DefaultRetryDelay          = 3 * time.Second
)

// ParsePopupAnimation maps a persisted name to an animation kind. Unknown names become None.
func ParsePopupAnimation(raw string) PopupAnimation {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "fade":
		return PopupAnimationFade
	case "slide":
		return PopupAnimationSlide
	case "scroll":
		return PopupAnimationScroll
	default:
		return PopupAnimationNone
	}
}

func (a PopupAnimation) MarshalText() ([]byte, error) {
	return []byte(ParsePopupAnimation(string(a))), nil
}

func (a *PopupAnimation) UnmarshalText(text []byte) error {
	*a = ParsePopupAnimation(string(text))

	return nil
}

// NotifyConfiguration holds popup and history preferences.
type NotifyConfiguration struct {
	TargetURI           string         `xml:"TargetUri"`
	PopupAnimation      PopupAnimation `xml:"PopupAnimation"`
	PopupTimeout        string         `xml:"PopupTimeout"`
	DisplayHistoryCount int            `xml:"DisplayHistoryCount"`
	IsNotifySuccess     bool           `xml:"IsNotifySuccess"`

	// Timeout is the parsed form of PopupTimeout. It is not persisted.
	Timeout time.Duration `xml:"-"`
}

// SetTimeout updates both the in-memory duration and its persisted text form.
func (n *NotifyConfiguration) SetTimeout(d time.Duration) {
	n.Timeout = d
	n.PopupTimeout = FormatDuration(d)
}

// syncTimeout parses PopupTimeout into Timeout. Timeout is left unchanged on error.
func (n *NotifyConfiguration) syncTimeout() error {
	raw := strings.TrimSpace(n.PopupTimeout)
	if raw == "" {
		n.Timeout = 0

		return nil
	}
	d, err := ParseDuration(raw)
	if err != nil {
		return err
	}
	n.Timeout = d

	return nil
}

func (n NotifyConfiguration) String() string {
	return fmt.Sprintf(
		"TargetUri=%s, PopupAnimation=%s, PopupTimeout=%s, DisplayHistoryCount=%d, IsNotifySuccess=%t",
		n.TargetURI, ParsePopupAnimation(string(n.PopupAnimation)), n.PopupTimeout, n.DisplayHistoryCount, n.IsNotifySuccess,
	)
}

// ConnectionConfiguration holds the reconnect policy of the WebSocket client.
type ConnectionConfiguration struct {
	MaxRetries int         `xml:"MaxRetries"`
	RetryDelay string      `xml:"RetryDelay"`
	Backoff    BackoffKind `xml:"Backoff"`
}

// Delay returns the parsed retry delay, falling back to DefaultRetryDelay.
func (c ConnectionConfiguration) Delay() time.Duration {
	if strings.TrimSpace(c.RetryDelay) == "" {
		return DefaultRetryDelay
	}
	d, err := ParseDuration(c.RetryDelay)
	if err != nil || d <= 0 {
		return DefaultRetryDelay
	}

	return d
}

func (c ConnectionConfiguration) String() string {
	return fmt.Sprintf("MaxRetries=%d, RetryDelay=%s, Backoff=%s", c.MaxRetries, c.RetryDelay, c.Backoff)
}

// LoggingConfiguration defines runtime logging behavior.
type LoggingConfiguration struct {
	Level     string `xml:"Level"`
	LogToFile bool   `xml:"LogToFile"`
}

func (l LoggingConfiguration) String() string {
	return fmt.Sprintf("Level=%s, LogToFile=%t", l.Level, l.LogToFile)
}

// AppConfig is the root persisted application configuration.
type AppConfig struct {
	XMLName    xml.Name                `xml:"ApplicationConfiguration"`
	Notify     NotifyConfiguration     `xml:"NotifyConfiguration"`
	Connection ConnectionConfiguration `xml:"ConnectionConfiguration"`
	Logging    LoggingConfiguration    `xml:"LoggingConfiguration"`
}

func (c AppConfig) String() string {
	return fmt.Sprintf("Notify{%s} Connection{%s} Logging{%s}", c.Notify, c.Connection, c.Logging)
}

func Default() AppConfig {
	cfg := AppConfig{
		Notify: NotifyConfiguration{
			TargetURI:           DefaultTargetURI,
			PopupAnimation:      PopupAnimationFade,
			DisplayHistoryCount: DefaultDisplayHistoryCount,
			IsNotifySuccess:     true,
		},
		Connection: ConnectionConfiguration{
			MaxRetries: DefaultMaxRetries,
			RetryDelay: FormatDuration(DefaultRetryDelay),
			Backoff:    BackoffConstant,
		},
		Logging: LoggingConfiguration{
			Level:     "info",
			LogToFile: false,
		},
	}
	cfg.Notify.SetTimeout(DefaultPopupTimeout)

	return cfg
}

// FillMissingDefaults replaces zero values that have no valid meaning.
func (c *AppConfig) FillMissingDefaults() {
	c.Notify.PopupAnimation = ParsePopupAnimation(string(c.Notify.PopupAnimation))
	if c.Connection.Backoff == "" {
		c.Connection.Backoff = BackoffConstant
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
}

func (c *AppConfig) Validate() error {
	if err := c.Notify.Validate(); err != nil {
		return err
	}
	if c.Connection.MaxRetries <= 0 {
		return verificationErrorf("ConnectionConfiguration.MaxRetries", "max retries must be positive, got %d", c.Connection.MaxRetries)
	}
	if raw := strings.TrimSpace(c.Connection.RetryDelay); raw != "" {
		if _, err := ParseDuration(raw); err != nil {
			return verificationErrorf("ConnectionConfiguration.RetryDelay", "retry delay %q is not a valid duration", raw)
		}
	}
	switch c.Connection.Backoff {
	case BackoffConstant, BackoffExponential, "":
	default:
		return verificationErrorf("ConnectionConfiguration.Backoff", "unknown backoff kind %q", c.Connection.Backoff)
	}

	return nil
}

// Validate checks range and format rules and refreshes Timeout from PopupTimeout.
// An empty PopupTimeout clears Timeout.
func (n *NotifyConfiguration) Validate() error {
	if n.DisplayHistoryCount < MinDisplayHistoryCount || n.DisplayHistoryCount > MaxDisplayHistoryCount {
		return verificationErrorf(
			"NotifyConfiguration.DisplayHistoryCount",
			"display history count must be between %d and %d, got %d",
			MinDisplayHistoryCount, MaxDisplayHistoryCount, n.DisplayHistoryCount,
		)
	}
	if err := n.syncTimeout(); err != nil {
		return verificationErrorf("NotifyConfiguration.PopupTimeout", "popup timeout %q is not a valid duration", strings.TrimSpace(n.PopupTimeout))
	}

	return nil
}
