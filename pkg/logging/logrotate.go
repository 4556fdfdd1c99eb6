package logging

import "fmt"

// GenerateLogrotateConfig creates a logrotate configuration for a component
func GenerateLogrotateConfig(component string) string {
	return fmt.Sprintf(`# Logrotate configuration for osqueryd %s
# Install: sudo cp this file to /etc/logrotate.d/osquery-%s

/var/log/osquery/osqueryd/%s.log {
    # Rotate daily
    daily
    
    # Keep 14 days of logs
    rotate 14
    
    # Compress old logs
    compress
    delaycompress
    
    # Don't error if log is missing
    missingok
    
    # Don't rotate empty logs
    notifempty
    
    # Create new log with these permissions
    create 0644 osquery osquery
    
    # Run postrotate script only once for all logs
    sharedscripts
    
    # Reload service after rotation
    postrotate
        systemctl reload osquery-%s 2>/dev/null || true
    endscript
}
`, component, component, component, component)
}

// GenerateWatchdogLogrotate generates logrotate config for the watchdog process
func GenerateWatchdogLogrotate() string {
	return GenerateLogrotateConfig("watchdog")
}

// GenerateWorkerLogrotate generates logrotate config for the worker process
func GenerateWorkerLogrotate() string {
	return GenerateLogrotateConfig("worker")
}
