// Package display implements the display registry domain model and business logic
package display

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	werrors "github.com/wrale/adsign/internal/adsignd/errors"
)

// Status is the stored status of a display
type Status string

const (
	// StatusOnline is written by heartbeats
	StatusOnline Status = "online"
	// StatusOffline is the initial status and the status after approval
	StatusOffline Status = "offline"
	// StatusInactive is set only by an admin and is never overwritten by a device
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusOffline, StatusInactive:
		return true
	}
	return false
}

// Field limits
const (
	MinIDLength       = 3
	MaxIDLength       = 30
	MaxNameLength     = 100
	MaxLocationLength = 200
	MinPasswordLength = 6
	// bcrypt ignores bytes past 72
	MaxPasswordLength = 72
)

var displayIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Resolution is the pixel size of a display
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Configuration holds presentation settings for a display
type Configuration struct {
	Brightness  int    `json:"brightness"`
	Volume      int    `json:"volume"`
	RefreshRate int    `json:"refreshRate"`
	Orientation string `json:"orientation"`
}

// DefaultConfiguration is applied to newly registered displays
func DefaultConfiguration() Configuration {
	return Configuration{
		Brightness:  100,
		Volume:      50,
		RefreshRate: 60,
		Orientation: "landscape",
	}
}

// Validate checks configuration bounds
func (c Configuration) Validate(op string) error {
	if c.Brightness < 0 || c.Brightness > 100 {
		return werrors.Validation(op, "brightness must be between 0 and 100")
	}
	if c.Volume < 0 || c.Volume > 100 {
		return werrors.Validation(op, "volume must be between 0 and 100")
	}
	if c.RefreshRate < 0 {
		return werrors.Validation(op, "refresh rate must not be negative")
	}
	if c.Orientation != "landscape" && c.Orientation != "portrait" {
		return werrors.Validation(op, "orientation must be landscape or portrait")
	}
	return nil
}

// Display represents a playback device or screen
type Display struct {
	// DisplayID is operator-chosen or generated, and unique
	DisplayID string
	Name      string
	Location  string
	// ConnectionToken is the device's bearer secret; it never changes
	ConnectionToken string
	// PasswordHash is an optional bcrypt hash
	PasswordHash string
	// AssignedAdmin is empty until the display is approved or admin-created
	AssignedAdmin string
	LastSeen      *time.Time
	IsConnected   bool
	Status        Status
	Resolution    Resolution
	Configuration Configuration
	DeviceInfo    map[string]string
	// CurrentLoop is the assigned loop id, empty when none
	CurrentLoop string
	// CurrentAd is the ad the device last reported playing
	CurrentAd string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Version tracks optimistic concurrency control
	Version int
}

// New validates the fields and builds an unassigned, offline display with a
// fresh connection token. An empty id is replaced by a generated one.
func New(id, name, location string, now time.Time) (*Display, error) {
	const op = "display.New"

	name = strings.TrimSpace(name)
	location = strings.TrimSpace(location)
	if err := ValidateName(op, name); err != nil {
		return nil, err
	}
	if err := ValidateLocation(op, location); err != nil {
		return nil, err
	}
	if id == "" {
		id = GenerateID()
	} else if err := ValidateID(op, id); err != nil {
		return nil, err
	}

	token, err := GenerateConnectionToken()
	if err != nil {
		return nil, werrors.NewError("INTERNAL", "failed to generate connection token", op, err)
	}

	return &Display{
		DisplayID:       id,
		Name:            name,
		Location:        location,
		ConnectionToken: token,
		Status:          StatusOffline,
		Configuration:   DefaultConfiguration(),
		DeviceInfo:      map[string]string{},
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}, nil
}

// ValidateName checks the display name bounds
func ValidateName(op, name string) error {
	if n := utf8.RuneCountInString(name); n < 1 || n > MaxNameLength {
		return werrors.Validation(op, "display name must be 1-100 characters")
	}
	return nil
}

// ValidateLocation checks the location bounds
func ValidateLocation(op, location string) error {
	if n := utf8.RuneCountInString(location); n < 1 || n > MaxLocationLength {
		return werrors.Validation(op, "location must be 1-200 characters")
	}
	return nil
}

// ValidateID checks an operator-chosen display id
func ValidateID(op, id string) error {
	if len(id) < MinIDLength || len(id) > MaxIDLength {
		return werrors.Validation(op, "display id must be 3-30 characters")
	}
	if !displayIDPattern.MatchString(id) {
		return werrors.Validation(op, "display id may only contain letters, digits, '-' and '_'")
	}
	return nil
}

// GenerateID returns a random display id such as DSP-1A2B3C4D
func GenerateID() string {
	u := uuid.New()
	return "DSP-" + strings.ToUpper(hex.EncodeToString(u[:4]))
}

// GenerateConnectionToken returns a 256-bit random hex token
func GenerateConnectionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// SetPassword stores a bcrypt hash of password
func (d *Display) SetPassword(password string) error {
	const op = "Display.SetPassword"

	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return werrors.Validation(op, "password must be 6-72 bytes")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return werrors.NewError("INTERNAL", "failed to hash password", op, err)
	}
	d.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash. Displays
// without a password never match.
func (d *Display) CheckPassword(password string) bool {
	if d.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)) == nil
}

// IsPending reports whether the display still awaits an admin
func (d *Display) IsPending() bool {
	return d.AssignedAdmin == ""
}

// OwnedBy reports whether adminID manages the display
func (d *Display) OwnedBy(adminID string) bool {
	return adminID != "" && d.AssignedAdmin == adminID
}

// Assign hands the display to adminID and resets its liveness
func (d *Display) Assign(adminID string, now time.Time) error {
	const op = "Display.Assign"

	if adminID == "" {
		return werrors.Validation(op, "admin id is required")
	}
	if d.AssignedAdmin != "" && d.AssignedAdmin != adminID {
		return werrors.InvalidState(op, "display is assigned to another admin")
	}
	d.AssignedAdmin = adminID
	d.Status = StatusOffline
	d.IsConnected = false
	d.UpdatedAt = now
	return nil
}

// SetInactive switches the display off, or back to offline when inactive is false
func (d *Display) SetInactive(inactive bool, now time.Time) {
	if inactive {
		d.Status = StatusInactive
		d.IsConnected = false
	} else if d.Status == StatusInactive {
		d.Status = StatusOffline
	}
	d.UpdatedAt = now
}

// Heartbeat records a liveness report. A device can never leave or enter
// the inactive status on its own.
func (d *Display) Heartbeat(reported Status, currentAd string, now time.Time) {
	if reported == "" || reported == StatusInactive {
		reported = StatusOnline
	}
	t := now
	d.LastSeen = &t
	d.IsConnected = true
	if d.Status != StatusInactive {
		d.Status = reported
	}
	if currentAd != "" {
		d.CurrentAd = currentAd
	}
	d.UpdatedAt = now
}
