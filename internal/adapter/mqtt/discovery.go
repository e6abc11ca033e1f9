package mqtt

import (
	"encoding/json"
	"fmt"
)

// entityConfig is the subset of the Home Assistant MQTT discovery
// schema the daemon announces. Omitted fields stay off the wire.
type entityConfig struct {
	Name             string     `json:"name"`
	UniqueID         string     `json:"unique_id"`
	StateTopic       string     `json:"state_topic,omitempty"`
	CommandTopic     string     `json:"command_topic,omitempty"`
	UnitOfMeasure    string     `json:"unit_of_measurement,omitempty"`
	Icon             string     `json:"icon,omitempty"`
	PayloadOn        string     `json:"payload_on,omitempty"`
	PayloadOff       string     `json:"payload_off,omitempty"`
	PayloadPress     string     `json:"payload_press,omitempty"`
	EnabledByDefault *bool      `json:"enabled_by_default,omitempty"`
	Device           deviceInfo `json:"device"`
}

type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// discoveryEntity pairs an entity config with the discovery topic it
// is announced under.
type discoveryEntity struct {
	Topic  string
	Config entityConfig
}

// buildDiscovery enumerates every entity the daemon exposes: sensors
// for each telemetry signal, a switch for the compression toggle, and
// buttons for the start and stop commands.
func buildDiscovery(prefix, hostname string) []discoveryEntity {
	device := deviceInfo{
		Identifiers:  []string{"blockward_" + hostname},
		Name:         "Blockward " + hostname,
		Manufacturer: "blockward",
		Model:        "Block Device Backup",
	}
	base := fmt.Sprintf("blockward/%s", hostname)
	id := func(suffix string) string { return fmt.Sprintf("blockward_%s_%s", hostname, suffix) }
	disabled := false

	sensors := []struct {
		key      string
		name     string
		unit     string
		icon     string
		disabled bool
	}{
		{key: "status", name: "Status", icon: "mdi:information-outline"},
		{key: "backup_ongoing", name: "Backup Ongoing", icon: "mdi:progress-clock"},
		{key: "last_start", name: "Last Backup Start", icon: "mdi:calendar-start"},
		{key: "last_end", name: "Last Backup End", icon: "mdi:calendar-end"},
		{key: "last_status", name: "Last Backup Status", icon: "mdi:check-decagram"},
		{key: "backup_count", name: "Backup Count", icon: "mdi:counter"},
		{key: "last_successful_file", name: "Last Successful Backup", icon: "mdi:file-check"},
		{key: "progress", name: "Backup Progress", unit: "%", icon: "mdi:percent"},
		{key: "progress_detailed", name: "Backup Progress Detailed", icon: "mdi:text", disabled: true},
		{key: "estimated_time_remaining", name: "Estimated Time Remaining", unit: "s", icon: "mdi:timer-sand"},
		{key: "elapsed_time", name: "Elapsed Time", unit: "s", icon: "mdi:timer-outline"},
		{key: "data_transferred", name: "Data Transferred", icon: "mdi:database-arrow-right"},
		{key: "last_write_speed", name: "Write Speed", unit: "MB/s", icon: "mdi:speedometer"},
		{key: "smb_status", name: "Share Status", icon: "mdi:folder-network"},
	}

	entities := make([]discoveryEntity, 0, len(sensors)+3)
	for _, s := range sensors {
		cfg := entityConfig{
			Name:          s.name,
			UniqueID:      id(s.key),
			StateTopic:    base + "/" + s.key,
			UnitOfMeasure: s.unit,
			Icon:          s.icon,
			Device:        device,
		}
		if s.disabled {
			cfg.EnabledByDefault = &disabled
		}
		entities = append(entities, discoveryEntity{
			Topic:  fmt.Sprintf("%s/sensor/%s/config", prefix, id(s.key)),
			Config: cfg,
		})
	}

	entities = append(entities,
		discoveryEntity{
			Topic: fmt.Sprintf("%s/switch/%s/config", prefix, id("compression")),
			Config: entityConfig{
				Name:         "Compression",
				UniqueID:     id("compression"),
				StateTopic:   base + "/compression_enabled/state",
				CommandTopic: base + "/compression_enabled/set",
				PayloadOn:    "true",
				PayloadOff:   "false",
				Icon:         "mdi:zip-box",
				Device:       device,
			},
		},
		discoveryEntity{
			Topic: fmt.Sprintf("%s/button/%s/config", prefix, id("start")),
			Config: entityConfig{
				Name:         "Start Backup",
				UniqueID:     id("start"),
				CommandTopic: base + "/command",
				PayloadPress: "start",
				Icon:         "mdi:play-circle",
				Device:       device,
			},
		},
		discoveryEntity{
			Topic: fmt.Sprintf("%s/button/%s/config", prefix, id("stop")),
			Config: entityConfig{
				Name:         "Stop Backup",
				UniqueID:     id("stop"),
				CommandTopic: base + "/command",
				PayloadPress: "stop",
				Icon:         "mdi:stop-circle",
				Device:       device,
			},
		},
	)

	return entities
}

// publishDiscovery announces every entity, retained so Home Assistant
// restarts pick them up without the daemon republishing.
func (c *Client) publishDiscovery() {
	for _, e := range buildDiscovery(c.discoveryPrefix, c.hostname) {
		payload, err := json.Marshal(e.Config)
		if err != nil {
			c.logger.Errorf("failed to encode discovery config for %s: %v", e.Config.UniqueID, err)
			continue
		}
		c.publish(e.Topic, string(payload), true)
	}
	c.logger.Infof("published home assistant discovery for %s", c.hostname)
}
