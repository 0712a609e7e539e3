// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "crankdecoder"
	ConfigType    = "yaml"
	DefaultConfig = `# crankdecoder trigger configuration

# Wheel geometry
decoder_type: "missing_tooth"  # missing_tooth | dual_wheel | basic_distributor | non360_dual
n_cylinders: 4
trigger_teeth: 36               # logical positions per pattern period (P)
trigger_missing_teeth: 1        # consecutive missing teeth (M)
trigger_angle: 0                # angular offset of tooth #1 from TDC
trigger_angle_mul: 1            # non-360 angle multiplier numerator
trig_speed: "crank"             # crank | cam
trig_pattern_sec: "single"      # single | 4-1 | poll
poll_level_polarity: false
trigger_filter: 1               # 0=off 1=25% 2=50% 3=75%

# Sync / cranking
stg_cycles: 3
use_resync: true
sequential: true
ign_cranklock: false

# Per-tooth ignition
per_tooth_ign: false
ignition_end_angle: [355, 175, 265, 85, 0, 0, 0, 0]

# VVT
vvt_enabled: false
vvt_mode: "open"                # open | closed
vvt_cl0_duty_ang: 0
angle_filter_vvt: 10            # 0-100, EMA weight percent for new samples

max_rpm: 9000
`
)

// DecoderType selects which decoder variant handles the configured wheel.
type DecoderType string

const (
	MissingTooth     DecoderType = "missing_tooth"
	DualWheel        DecoderType = "dual_wheel"
	BasicDistributor DecoderType = "basic_distributor"
	NonSixtyDual     DecoderType = "non360_dual"
)

// TriggerSpeed distinguishes a crank-speed wheel from a cam-speed wheel.
type TriggerSpeed string

const (
	CrankSpeed TriggerSpeed = "crank"
	CamSpeed   TriggerSpeed = "cam"
)

// SecondaryPattern describes the shape of the secondary (cam/sync) signal.
type SecondaryPattern string

const (
	SecondarySingle SecondaryPattern = "single"
	Secondary4_1    SecondaryPattern = "4-1"
	SecondaryPoll   SecondaryPattern = "poll"
)

// VVTMode distinguishes open-loop from closed-loop VVT angle correction.
type VVTMode string

const (
	VVTOpenLoop   VVTMode = "open"
	VVTClosedLoop VVTMode = "closed"
)

// Settings holds all trigger-decoder configuration.
type Settings struct {
	DecoderType DecoderType `mapstructure:"decoder_type"`

	NCylinders          int              `mapstructure:"n_cylinders"`
	TriggerTeeth        uint16           `mapstructure:"trigger_teeth"`
	TriggerMissingTeeth uint16           `mapstructure:"trigger_missing_teeth"`
	TriggerAngle        int16            `mapstructure:"trigger_angle"`
	TriggerAngleMul     uint16           `mapstructure:"trigger_angle_mul"`
	TrigSpeed           TriggerSpeed     `mapstructure:"trig_speed"`
	TrigPatternSec      SecondaryPattern `mapstructure:"trig_pattern_sec"`
	PollLevelPolarity   bool             `mapstructure:"poll_level_polarity"`
	TriggerFilter       int              `mapstructure:"trigger_filter"`

	StgCycles    uint8 `mapstructure:"stg_cycles"`
	UseResync    bool  `mapstructure:"use_resync"`
	Sequential   bool  `mapstructure:"sequential"`
	IgnCranklock bool  `mapstructure:"ign_cranklock"`

	PerToothIgn      bool      `mapstructure:"per_tooth_ign"`
	IgnitionEndAngle [8]uint16 `mapstructure:"ignition_end_angle"`

	VVTEnabled     bool    `mapstructure:"vvt_enabled"`
	VVTMode        VVTMode `mapstructure:"vvt_mode"`
	VVTCL0DutyAng  uint16  `mapstructure:"vvt_cl0_duty_ang"`
	AngleFilterVVT uint8   `mapstructure:"angle_filter_vvt"`

	MaxRPM uint16 `mapstructure:"max_rpm"`
}

// CrankAngleMax is 720 for sequential configurations, 360 otherwise.
func (s Settings) CrankAngleMax() int32 {
	if s.Sequential {
		return 720
	}
	return 360
}

// PatternTeeth is the logical tooth count per pattern period, including
// the missing-tooth gap.
func (s Settings) PatternTeeth() uint16 {
	return s.TriggerTeeth
}

// ActualTeeth is the physical tooth count (pattern teeth minus the
// missing-tooth gap).
func (s Settings) ActualTeeth() uint16 {
	if s.TriggerMissingTeeth >= s.TriggerTeeth {
		return 0
	}
	return s.TriggerTeeth - s.TriggerMissingTeeth
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/crankdecoder/
func Init() error {
	viper.SetDefault("decoder_type", "missing_tooth")
	viper.SetDefault("n_cylinders", 4)
	viper.SetDefault("trigger_teeth", 36)
	viper.SetDefault("trigger_missing_teeth", 1)
	viper.SetDefault("trigger_angle", 0)
	viper.SetDefault("trigger_angle_mul", 1)
	viper.SetDefault("trig_speed", "crank")
	viper.SetDefault("trig_pattern_sec", "single")
	viper.SetDefault("poll_level_polarity", false)
	viper.SetDefault("trigger_filter", 1)
	viper.SetDefault("stg_cycles", 3)
	viper.SetDefault("use_resync", true)
	viper.SetDefault("sequential", true)
	viper.SetDefault("ign_cranklock", false)
	viper.SetDefault("per_tooth_ign", false)
	viper.SetDefault("ignition_end_angle", []int{355, 175, 265, 85, 0, 0, 0, 0})
	viper.SetDefault("vvt_enabled", false)
	viper.SetDefault("vvt_mode", "open")
	viper.SetDefault("vvt_cl0_duty_ang", 0)
	viper.SetDefault("angle_filter_vvt", 10)
	viper.SetDefault("max_rpm", 9000)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings.
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges.
func (s *Settings) Validate() error {
	var errs []error

	if s.NCylinders < 1 || s.NCylinders > 12 {
		errs = append(errs, fmt.Errorf("n_cylinders must be between 1 and 12, got %d", s.NCylinders))
	}
	if s.TriggerTeeth == 0 {
		errs = append(errs, fmt.Errorf("trigger_teeth must be positive, got %d", s.TriggerTeeth))
	}

	switch s.DecoderType {
	case MissingTooth:
		if s.TriggerMissingTeeth < 1 || s.TriggerMissingTeeth > 2 || s.TriggerMissingTeeth >= s.TriggerTeeth {
			errs = append(errs, fmt.Errorf("trigger_missing_teeth must be 1 or 2 and less than trigger_teeth, got %d", s.TriggerMissingTeeth))
		}
	case DualWheel, BasicDistributor, NonSixtyDual:
		// no missing-tooth constraint for these wheel shapes
	default:
		errs = append(errs, fmt.Errorf("decoder_type must be one of missing_tooth, dual_wheel, basic_distributor, non360_dual, got %q", s.DecoderType))
	}

	if s.TriggerFilter < 0 || s.TriggerFilter > 3 {
		errs = append(errs, fmt.Errorf("trigger_filter must be between 0 and 3, got %d", s.TriggerFilter))
	}
	if s.TrigSpeed != CrankSpeed && s.TrigSpeed != CamSpeed {
		errs = append(errs, fmt.Errorf("trig_speed must be crank or cam, got %q", s.TrigSpeed))
	}
	if s.TrigPatternSec != SecondarySingle && s.TrigPatternSec != Secondary4_1 && s.TrigPatternSec != SecondaryPoll {
		errs = append(errs, fmt.Errorf("trig_pattern_sec must be single, 4-1, or poll, got %q", s.TrigPatternSec))
	}
	if s.VVTEnabled && s.VVTMode != VVTOpenLoop && s.VVTMode != VVTClosedLoop {
		errs = append(errs, fmt.Errorf("vvt_mode must be open or closed, got %q", s.VVTMode))
	}
	if s.AngleFilterVVT > 100 {
		errs = append(errs, fmt.Errorf("angle_filter_vvt must be between 0 and 100, got %d", s.AngleFilterVVT))
	}
	if s.DecoderType == NonSixtyDual && s.TriggerAngleMul == 0 {
		errs = append(errs, fmt.Errorf("trigger_angle_mul must be positive for non360_dual, got %d", s.TriggerAngleMul))
	}
	if s.MaxRPM < 1000 || s.MaxRPM > 20000 {
		errs = append(errs, fmt.Errorf("max_rpm must be between 1000 and 20000, got %d", s.MaxRPM))
	}
	if s.StgCycles == 0 {
		errs = append(errs, fmt.Errorf("stg_cycles must be positive, got %d", s.StgCycles))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
