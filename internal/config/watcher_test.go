package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestConfigWatcher(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config-watcher-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "test-config.yaml")
	initialConfig := `
interval: 60s
validation_threads: 10
request_timeout: 12s
anonymity_timeout: 10s
test_url: "https://ipinfo.io/json"
anonymity_url: "https://httpbin.org/get?show_env=1"
check_anonymity: true
user_agent: "TestAgent/1.0"
api_addr: ":8081"
metrics_addr: ":9090"
log_level: "info"
log_format: "text"
`

	if err := os.WriteFile(configPath, []byte(initialConfig), 0644); err != nil {
		t.Fatalf("Failed to write initial config: %v", err)
	}

	var reloadCount int
	var lastConfig *Config
	var reloadMutex sync.Mutex

	watcherConfig := WatcherConfig{
		DebounceDelay:        100 * time.Millisecond,
		ValidateBeforeReload: true,
		OnReload: func(config *Config, result *ValidationResult) {
			reloadMutex.Lock()
			reloadCount++
			lastConfig = config
			reloadMutex.Unlock()
			t.Logf("Config reloaded successfully (reload #%d)", reloadCount)
		},
		OnError: func(err error) {
			t.Logf("Config reload error: %v", err)
		},
	}

	watcher, err := NewConfigWatcher(configPath, watcherConfig)
	if err != nil {
		t.Fatalf("Failed to create config watcher: %v", err)
	}
	defer watcher.Stop()

	initialLoadedConfig := watcher.GetConfig()
	if initialLoadedConfig.ValidationThreads != 10 {
		t.Errorf("Expected initial validation_threads to be 10, got %d", initialLoadedConfig.ValidationThreads)
	}

	updatedConfig := `
interval: 60s
validation_threads: 20
request_timeout: 12s
anonymity_timeout: 10s
test_url: "https://ipinfo.io/json"
anonymity_url: "https://httpbin.org/get?show_env=1"
check_anonymity: true
user_agent: "UpdatedAgent/2.0"
api_addr: ":8081"
metrics_addr: ":9090"
log_level: "info"
log_format: "text"
`

	if err := os.WriteFile(configPath, []byte(updatedConfig), 0644); err != nil {
		t.Fatalf("Failed to write updated config: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	reloadMutex.Lock()
	if reloadCount != 1 {
		t.Errorf("Expected 1 reload, got %d", reloadCount)
	}
	if lastConfig != nil && lastConfig.ValidationThreads != 20 {
		t.Errorf("Expected updated validation_threads to be 20, got %d", lastConfig.ValidationThreads)
	}
	reloadMutex.Unlock()

	currentConfig := watcher.GetConfig()
	if currentConfig.ValidationThreads != 20 {
		t.Errorf("Expected GetConfig to return validation_threads 20, got %d", currentConfig.ValidationThreads)
	}
	if currentConfig.UserAgent != "UpdatedAgent/2.0" {
		t.Errorf("Expected GetConfig to return UserAgent 'UpdatedAgent/2.0', got %s", currentConfig.UserAgent)
	}
}

func TestConfigWatcherDebouncing(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config-watcher-debounce-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "test-config.yaml")
	initialConfig := `
interval: 60s
validation_threads: 10
request_timeout: 12s
test_url: "https://ipinfo.io/json"
api_addr: ":8081"
metrics_addr: ":9090"
`

	if err := os.WriteFile(configPath, []byte(initialConfig), 0644); err != nil {
		t.Fatalf("Failed to write initial config: %v", err)
	}

	var reloadCount int
	var reloadMutex sync.Mutex

	watcherConfig := WatcherConfig{
		DebounceDelay:        200 * time.Millisecond,
		ValidateBeforeReload: true,
		OnReload: func(config *Config, result *ValidationResult) {
			reloadMutex.Lock()
			reloadCount++
			reloadMutex.Unlock()
			t.Logf("Config reloaded (reload #%d)", reloadCount)
		},
		OnError: func(err error) {
			t.Logf("Config reload error: %v", err)
		},
	}

	watcher, err := NewConfigWatcher(configPath, watcherConfig)
	if err != nil {
		t.Fatalf("Failed to create config watcher: %v", err)
	}
	defer watcher.Stop()

	for i := 1; i <= 5; i++ {
		config := fmt.Sprintf(`
interval: 60s
validation_threads: %d
request_timeout: 12s
test_url: "https://ipinfo.io/json"
api_addr: ":8081"
metrics_addr: ":9090"
`, 10+i)

		if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
			t.Fatalf("Failed to write config update %d: %v", i, err)
		}

		time.Sleep(50 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)

	reloadMutex.Lock()
	if reloadCount != 1 {
		t.Errorf("Expected 1 reload due to debouncing, got %d", reloadCount)
	}
	reloadMutex.Unlock()

	currentConfig := watcher.GetConfig()
	if currentConfig.ValidationThreads != 15 {
		t.Errorf("Expected final validation_threads to be 15, got %d", currentConfig.ValidationThreads)
	}
}

func TestConfigWatcherValidation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config-watcher-validation-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "test-config.yaml")
	validYAML := `
interval: 60s
validation_threads: 10
request_timeout: 12s
test_url: "https://ipinfo.io/json"
api_addr: ":8081"
metrics_addr: ":9090"
`

	if err := os.WriteFile(configPath, []byte(validYAML), 0644); err != nil {
		t.Fatalf("Failed to write initial config: %v", err)
	}

	var reloadCount int
	var errorCount int
	var lastError error
	var eventMutex sync.Mutex

	watcherConfig := WatcherConfig{
		DebounceDelay:        100 * time.Millisecond,
		ValidateBeforeReload: true,
		OnReload: func(config *Config, result *ValidationResult) {
			eventMutex.Lock()
			reloadCount++
			eventMutex.Unlock()
			t.Logf("Config reloaded - validation_threads: %d, valid: %v, warnings: %d", config.ValidationThreads, result.Valid, len(result.Warnings))
		},
		OnError: func(err error) {
			eventMutex.Lock()
			errorCount++
			lastError = err
			eventMutex.Unlock()
			t.Logf("Error: %v", err)
		},
	}

	watcher, err := NewConfigWatcher(configPath, watcherConfig)
	if err != nil {
		t.Fatalf("Failed to create config watcher: %v", err)
	}
	defer watcher.Stop()

	_ = watcher.GetConfig()

	// validation_threads of 300 is above the maximum of 200 and fails
	// validation; unlike 0, it is not replaced by a default in LoadConfig.
	invalidConfig := `
interval: 60s
validation_threads: 300
request_timeout: 12s
test_url: "https://ipinfo.io/json"
api_addr: ":8081"
metrics_addr: ":9090"
`

	if err := os.WriteFile(configPath, []byte(invalidConfig), 0644); err != nil {
		t.Fatalf("Failed to write invalid config: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	eventMutex.Lock()
	t.Logf("Reload count: %d, Error count: %d", reloadCount, errorCount)
	if errorCount != 1 {
		t.Errorf("Expected 1 error for invalid config, got %d", errorCount)
	}
	if lastError == nil || !strings.Contains(lastError.Error(), "validation failed") {
		t.Errorf("Expected validation error, got: %v", lastError)
	}
	eventMutex.Unlock()
}

func TestConfigWatcherStop(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config-watcher-stop-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	configPath := filepath.Join(tempDir, "test-config.yaml")
	config := `
interval: 60s
validation_threads: 10
request_timeout: 12s
test_url: "https://ipinfo.io/json"
api_addr: ":8081"
metrics_addr: ":9090"
`

	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	watcherConfig := DefaultWatcherConfig()
	watcher, err := NewConfigWatcher(configPath, watcherConfig)
	if err != nil {
		t.Fatalf("Failed to create config watcher: %v", err)
	}

	if err := watcher.Stop(); err != nil {
		t.Errorf("Failed to stop watcher: %v", err)
	}

	stopped := make(chan bool, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stopped <- true
			} else {
				stopped <- false
			}
		}()
		_ = watcher.GetConfig()
	}()

	select {
	case wasStopped := <-stopped:
		if wasStopped {
			t.Error("GetConfig should still work after stopping watcher")
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for stop check")
	}
}
