// Package ingest turns host reports into smart.Reading values.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"diskmind/internal/smart"
)

// Disk type labels produced by the parser.
const (
	TypeNVMe = "NVMe"
	TypeSSD  = "SSD"
	TypeHDD  = "HDD"
)

// ErrNoSerial is returned for drive objects without a serial number.
var ErrNoSerial = errors.New("drive has no serial number")

// Report is the body accepted by the ingest endpoint. Drives carry raw
// `smartctl --json` output; Readings are already normalized.
type Report struct {
	Hostname string            `json:"hostname"`
	Drives   []json.RawMessage `json:"drives,omitempty"`
	Readings []smart.Reading   `json:"readings,omitempty"`
}

// nvmeKeys maps smartctl NVMe health log fields to attribute names.
var nvmeKeys = map[string]string{
	"critical_warning":     string(smart.CriticalWarning),
	"temperature":          string(smart.Temperature),
	"available_spare":      string(smart.AvailableSpare),
	"percentage_used":      string(smart.PercentageUsed),
	"media_errors":         string(smart.MediaAndDataIntegrityErrors),
	"num_err_log_entries":  string(smart.ErrorInformationLogEntries),
	"unsafe_shutdowns":     string(smart.UnsafeShutdowns),
	"power_on_hours":       "Power_On_Hours",
	"power_cycles":         "Power_Cycles",
	"data_units_read":      "Data_Units_Read",
	"data_units_written":   "Data_Units_Written",
	"controller_busy_time": "Controller_Busy_Time",
}

// Parse decodes a report body. Drives that cannot be parsed are returned as
// errors alongside the readings that could.
func Parse(body io.Reader) (string, []smart.Reading, []error, error) {
	var rep Report
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&rep); err != nil {
		return "", nil, nil, fmt.Errorf("decode report: %w", err)
	}

	host := strings.TrimSpace(rep.Hostname)
	readings := make([]smart.Reading, 0, len(rep.Drives)+len(rep.Readings))
	var skipped []error

	for i, raw := range rep.Drives {
		r, err := ParseDrive(host, raw)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("drive %d: %w", i, err))
			continue
		}
		readings = append(readings, r)
	}

	for _, r := range rep.Readings {
		if r.Host == "" {
			r.Host = host
		}
		readings = append(readings, r)
	}

	return host, readings, skipped, nil
}

// ParseDrive converts a single smartctl JSON document into a Reading.
func ParseDrive(host string, raw []byte) (smart.Reading, error) {
	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return smart.Reading{}, fmt.Errorf("decode drive: %w", err)
	}

	serial, _ := data["serial_number"].(string)
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return smart.Reading{}, ErrNoSerial
	}

	r := smart.Reading{
		DiskID:      serial,
		Serial:      serial,
		Host:        host,
		SmartStatus: smart.SmartNA,
		Attributes:  make(map[string]any),
	}

	if device, ok := data["device"].(map[string]any); ok {
		r.Device, _ = device["name"].(string)
	}

	// Extract model name
	if model, ok := data["model_name"].(string); ok {
		r.Model = model
	} else if model, ok := data["model_family"].(string); ok {
		r.Model = model
	}

	if status, ok := data["smart_status"].(map[string]any); ok {
		if passed, ok := status["passed"].(bool); ok {
			r.SmartStatus = smart.SmartFailed
			if passed {
				r.SmartStatus = smart.SmartPassed
			}
		}
	}

	r.DiskType = diskType(data)

	if ata, ok := data["ata_smart_attributes"].(map[string]any); ok {
		parseATATable(ata, r.Attributes)
	}
	if nvme, ok := data["nvme_smart_health_information_log"].(map[string]any); ok {
		parseNVMeLog(nvme, r.Attributes)
	}

	return r, nil
}

func diskType(data map[string]any) string {
	if _, ok := data["nvme_smart_health_information_log"]; ok {
		return TypeNVMe
	}
	if device, ok := data["device"].(map[string]any); ok {
		for _, k := range []string{"protocol", "type"} {
			if v, ok := device[k].(string); ok && strings.EqualFold(v, "nvme") {
				return TypeNVMe
			}
		}
	}
	if rate, ok := data["rotation_rate"].(json.Number); ok {
		if n, err := rate.Int64(); err == nil && n == 0 {
			return TypeSSD
		}
	}
	return TypeHDD
}

func parseATATable(ata map[string]any, out map[string]any) {
	table, ok := ata["table"].([]any)
	if !ok {
		return
	}
	for _, row := range table {
		attr, ok := row.(map[string]any)
		if !ok {
			continue
		}
		name, _ := attr["name"].(string)
		if name == "" {
			continue
		}
		raw, ok := attr["raw"].(map[string]any)
		if !ok {
			continue
		}
		v, ok := raw["value"].(json.Number)
		if !ok {
			continue
		}
		if smart.IsTemperature(TypeHDD, name) {
			if t, ok := ataTemperature(v); ok {
				out[name] = t
			}
			continue
		}
		out[name] = v
	}
}

// ataTemperature keeps the current reading from a packed ATA temperature
// raw value. smartctl stores lifetime min/max in the upper bytes, so
// "36 (0 18 0 0 0)" arrives as 77309411364.
func ataTemperature(v json.Number) (json.Number, bool) {
	n, ok := smart.ParseRaw(v)
	if !ok || n < 0 {
		return "", false
	}
	return json.Number(strconv.FormatInt(n&0xFF, 10)), true
}

func parseNVMeLog(nvme map[string]any, out map[string]any) {
	for key, name := range nvmeKeys {
		if v, ok := nvme[key].(json.Number); ok {
			out[name] = v
		}
	}

	sensors, ok := nvme["temperature_sensors"].([]any)
	if !ok {
		return
	}
	for i, s := range sensors {
		if v, ok := s.(json.Number); ok {
			out[fmt.Sprintf("Temperature_Sensor_%d", i+1)] = v
		}
	}
}
