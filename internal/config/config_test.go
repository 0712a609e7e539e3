package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func resetViper() {
	viper.Reset()
}

func TestInit_WithDefaults(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(DefaultConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"decoder_type", "missing_tooth"},
		{"n_cylinders", 4},
		{"trigger_teeth", 36},
		{"trigger_missing_teeth", 1},
		{"trig_speed", "crank"},
		{"trig_pattern_sec", "single"},
		{"trigger_filter", 1},
		{"stg_cycles", 3},
		{"use_resync", true},
		{"sequential", true},
		{"vvt_enabled", false},
		{"vvt_mode", "open"},
		{"angle_filter_vvt", 10},
		{"max_rpm", 9000},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestInit_CreatesConfigIfMissing(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	configPath := filepath.Join(tmpDir, ".config", AppName, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Errorf("Init() did not create config file at %s", configPath)
	}
}

func TestInit_ReadsLocalConfigFirst(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	xdgConfigDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(xdgConfigDir, 0755); err != nil {
		t.Fatalf("failed to create XDG config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(xdgConfigDir, "config.yaml"), []byte("n_cylinders: 6"), 0644); err != nil {
		t.Fatalf("failed to write XDG config: %v", err)
	}

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	}()

	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("n_cylinders: 8"), 0644); err != nil {
		t.Fatalf("failed to write local config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if got := viper.GetInt("n_cylinders"); got != 8 {
		t.Errorf("viper.GetInt(n_cylinders) = %d, want 8 (local config)", got)
	}
}

func TestGet_ReturnsSettings(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(DefaultConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	settings, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if settings.DecoderType != MissingTooth {
		t.Errorf("Settings.DecoderType = %v, want %v", settings.DecoderType, MissingTooth)
	}
	if settings.NCylinders != 4 {
		t.Errorf("Settings.NCylinders = %d, want 4", settings.NCylinders)
	}
	if settings.TriggerTeeth != 36 {
		t.Errorf("Settings.TriggerTeeth = %d, want 36", settings.TriggerTeeth)
	}
	if settings.TriggerMissingTeeth != 1 {
		t.Errorf("Settings.TriggerMissingTeeth = %d, want 1", settings.TriggerMissingTeeth)
	}
	if settings.Sequential != true {
		t.Errorf("Settings.Sequential = %v, want true", settings.Sequential)
	}
}

func TestGet_AllFields(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	customConfig := `decoder_type: "dual_wheel"
n_cylinders: 6
trigger_teeth: 60
trigger_missing_teeth: 2
trigger_angle: 90
trig_speed: "cam"
trig_pattern_sec: "4-1"
trigger_filter: 2
stg_cycles: 5
use_resync: false
sequential: false
vvt_enabled: true
vvt_mode: "closed"
vvt_cl0_duty_ang: 15
angle_filter_vvt: 25
max_rpm: 8000
`

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(customConfig), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	settings, err := Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if settings.DecoderType != DualWheel {
		t.Errorf("Settings.DecoderType = %v, want %v", settings.DecoderType, DualWheel)
	}
	if settings.NCylinders != 6 {
		t.Errorf("Settings.NCylinders = %d, want 6", settings.NCylinders)
	}
	if settings.TriggerTeeth != 60 {
		t.Errorf("Settings.TriggerTeeth = %d, want 60", settings.TriggerTeeth)
	}
	if settings.TriggerMissingTeeth != 2 {
		t.Errorf("Settings.TriggerMissingTeeth = %d, want 2", settings.TriggerMissingTeeth)
	}
	if settings.TrigSpeed != CamSpeed {
		t.Errorf("Settings.TrigSpeed = %v, want %v", settings.TrigSpeed, CamSpeed)
	}
	if settings.TrigPatternSec != Secondary4_1 {
		t.Errorf("Settings.TrigPatternSec = %v, want %v", settings.TrigPatternSec, Secondary4_1)
	}
	if settings.StgCycles != 5 {
		t.Errorf("Settings.StgCycles = %d, want 5", settings.StgCycles)
	}
	if settings.UseResync != false {
		t.Errorf("Settings.UseResync = %v, want false", settings.UseResync)
	}
	if settings.VVTEnabled != true {
		t.Errorf("Settings.VVTEnabled = %v, want true", settings.VVTEnabled)
	}
	if settings.VVTMode != VVTClosedLoop {
		t.Errorf("Settings.VVTMode = %v, want %v", settings.VVTMode, VVTClosedLoop)
	}
	if settings.MaxRPM != 8000 {
		t.Errorf("Settings.MaxRPM = %d, want 8000", settings.MaxRPM)
	}
}

func TestEnsureConfigExists_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config")

	if err := ensureConfigExists(configPath); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	configFile := filepath.Join(configPath, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		t.Errorf("ensureConfigExists() did not create %s", configFile)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if string(content) != DefaultConfig {
		t.Errorf("config content does not match DefaultConfig")
	}
}

func TestEnsureConfigExists_DoesNotOverwrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := tmpDir

	configFile := filepath.Join(configPath, "config.yaml")
	existingContent := "existing: true"
	if err := os.WriteFile(configFile, []byte(existingContent), 0644); err != nil {
		t.Fatalf("failed to write existing config: %v", err)
	}

	if err := ensureConfigExists(configPath); err != nil {
		t.Fatalf("ensureConfigExists() error = %v", err)
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}
	if string(content) != existingContent {
		t.Errorf("ensureConfigExists() overwrote existing config")
	}
}

func TestConstants(t *testing.T) {
	if AppName != "crankdecoder" {
		t.Errorf("AppName = %q, want %q", AppName, "crankdecoder")
	}
	if ConfigType != "yaml" {
		t.Errorf("ConfigType = %q, want %q", ConfigType, "yaml")
	}
}

func TestDefaultConfig_ContainsExpectedKeys(t *testing.T) {
	expectedKeys := []string{
		"decoder_type",
		"n_cylinders",
		"trigger_teeth",
		"trigger_missing_teeth",
		"trig_speed",
		"trig_pattern_sec",
		"trigger_filter",
		"stg_cycles",
		"vvt_enabled",
		"vvt_mode",
		"max_rpm",
	}

	for _, key := range expectedKeys {
		if !containsString(DefaultConfig, key) {
			t.Errorf("DefaultConfig missing key: %s", key)
		}
	}
}

func containsString(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestInit_InvalidConfigFile(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configDir := filepath.Join(tmpDir, ".config", AppName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	invalidYAML := "invalid: yaml: content: [[["
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write invalid config: %v", err)
	}

	err := Init()
	if err == nil {
		t.Error("Init() should return error for invalid YAML")
	}
}

func TestEnsureConfigExists_WriteError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("skipping test when running as root")
	}

	tmpDir := t.TempDir()

	configPath := filepath.Join(tmpDir, "readonly")
	if err := os.MkdirAll(configPath, 0555); err != nil {
		t.Fatalf("failed to create readonly dir: %v", err)
	}
	defer func() {
		if err := os.Chmod(configPath, 0755); err != nil {
			t.Logf("failed to restore permissions: %v", err)
		}
	}()

	err := ensureConfigExists(filepath.Join(configPath, "subdir"))
	if err == nil {
		t.Error("ensureConfigExists() should return error for read-only directory")
	}
}

func TestInit_LoadsDotConfigYaml(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	}()

	dotConfigContent := `decoder_type: "basic_distributor"
n_cylinders: 8
trigger_teeth: 8
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".config.yaml"), []byte(dotConfigContent), 0644); err != nil {
		t.Fatalf("failed to write .config.yaml: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"decoder_type", "basic_distributor"},
		{"n_cylinders", 8},
		{"trigger_teeth", 8},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := viper.Get(tt.key)
			if got != tt.expected {
				t.Errorf("viper.Get(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestInit_DotConfigTakesPrecedence(t *testing.T) {
	resetViper()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	origDir, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		if err := os.Chdir(origDir); err != nil {
			t.Logf("failed to restore dir: %v", err)
		}
	}()

	if err := os.WriteFile(filepath.Join(tmpDir, ".config.yaml"), []byte("n_cylinders: 3"), 0644); err != nil {
		t.Fatalf("failed to write .config.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("n_cylinders: 5"), 0644); err != nil {
		t.Fatalf("failed to write config.yaml: %v", err)
	}

	if err := Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if got := viper.GetInt("n_cylinders"); got != 3 {
		t.Errorf("viper.GetInt(n_cylinders) = %d, want 3 (.config.yaml should take precedence)", got)
	}
}

// Validation tests

func TestSettings_Validate_ValidSettings(t *testing.T) {
	s := validSettings()

	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for valid settings", err)
	}
}

func TestSettings_Validate_NCylinders(t *testing.T) {
	tests := []struct {
		name       string
		nCylinders int
		wantErr    bool
	}{
		{"zero", 0, true},
		{"minimum", 1, false},
		{"typical 4", 4, false},
		{"typical 8", 8, false},
		{"maximum", 12, false},
		{"too many", 13, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.NCylinders = tt.nCylinders
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_TriggerMissingTeeth(t *testing.T) {
	tests := []struct {
		name         string
		missingTeeth uint16
		wantErr      bool
	}{
		{"zero", 0, true},
		{"one", 1, false},
		{"two", 2, false},
		{"three", 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.DecoderType = MissingTooth
			s.TriggerMissingTeeth = tt.missingTeeth
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_DualWheelIgnoresMissingTeeth(t *testing.T) {
	s := validSettings()
	s.DecoderType = DualWheel
	s.TriggerMissingTeeth = 0
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil for dual_wheel with no missing teeth", err)
	}
}

func TestSettings_Validate_TriggerFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  int
		wantErr bool
	}{
		{"negative", -1, true},
		{"off", 0, false},
		{"25pct", 1, false},
		{"75pct", 3, false},
		{"too high", 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.TriggerFilter = tt.filter
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_TrigSpeed(t *testing.T) {
	s := validSettings()
	s.TrigSpeed = "invalid"
	if err := s.Validate(); err == nil {
		t.Error("Validate() should error for invalid trig_speed")
	}
}

func TestSettings_Validate_TrigPatternSec(t *testing.T) {
	s := validSettings()
	s.TrigPatternSec = "invalid"
	if err := s.Validate(); err == nil {
		t.Error("Validate() should error for invalid trig_pattern_sec")
	}
}

func TestSettings_Validate_VVTMode(t *testing.T) {
	s := validSettings()
	s.VVTEnabled = true
	s.VVTMode = "invalid"
	if err := s.Validate(); err == nil {
		t.Error("Validate() should error for invalid vvt_mode when VVT is enabled")
	}
}

func TestSettings_Validate_VVTModeIgnoredWhenDisabled(t *testing.T) {
	s := validSettings()
	s.VVTEnabled = false
	s.VVTMode = "invalid"
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil when VVT disabled", err)
	}
}

func TestSettings_Validate_AngleFilterVVT(t *testing.T) {
	tests := []struct {
		name    string
		value   uint8
		wantErr bool
	}{
		{"zero", 0, false},
		{"typical", 10, false},
		{"maximum", 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.AngleFilterVVT = tt.value
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_NonSixtyDualRequiresAngleMul(t *testing.T) {
	s := validSettings()
	s.DecoderType = NonSixtyDual
	s.TriggerAngleMul = 0
	if err := s.Validate(); err == nil {
		t.Error("Validate() should error when non360_dual has zero trigger_angle_mul")
	}
}

func TestSettings_Validate_MaxRPM(t *testing.T) {
	tests := []struct {
		name    string
		maxRPM  uint16
		wantErr bool
	}{
		{"too low", 999, true},
		{"minimum", 1000, false},
		{"typical", 9000, false},
		{"maximum", 20000, false},
		{"too high", 20001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			s.MaxRPM = tt.maxRPM
			err := s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSettings_Validate_MultipleErrors(t *testing.T) {
	s := &Settings{
		NCylinders:          0,
		TriggerTeeth:        0,
		DecoderType:         "bogus",
		TriggerFilter:       -1,
		TrigSpeed:           "bogus",
		TrigPatternSec:      "bogus",
		MaxRPM:              0,
		StgCycles:           0,
	}

	err := s.Validate()
	if err == nil {
		t.Fatal("Validate() should return error for multiple invalid fields")
	}

	errStr := err.Error()
	expectedSubstrings := []string{
		"n_cylinders",
		"trigger_teeth",
		"decoder_type",
		"trigger_filter",
		"trig_speed",
		"trig_pattern_sec",
		"max_rpm",
		"stg_cycles",
	}

	for _, substr := range expectedSubstrings {
		if !containsString(errStr, substr) {
			t.Errorf("Validate() error should mention %q, got: %v", substr, errStr)
		}
	}
}

// validSettings returns a Settings struct with all valid values
func validSettings() *Settings {
	return &Settings{
		DecoderType:         MissingTooth,
		NCylinders:          4,
		TriggerTeeth:        36,
		TriggerMissingTeeth: 1,
		TriggerAngle:        0,
		TriggerAngleMul:     1,
		TrigSpeed:           CrankSpeed,
		TrigPatternSec:      SecondarySingle,
		TriggerFilter:       1,
		StgCycles:           3,
		UseResync:           true,
		Sequential:          true,
		VVTEnabled:          false,
		VVTMode:             VVTOpenLoop,
		AngleFilterVVT:      10,
		MaxRPM:              9000,
	}
}
