package smart

// Attribute is a SMART or NVMe attribute name as it appears in a reading.
type Attribute string

// ATA-family and NVMe attribute names the engine knows about.
const (
	ReallocatedSectorCt         Attribute = "Reallocated_Sector_Ct"
	CurrentPendingSector        Attribute = "Current_Pending_Sector"
	OfflineUncorrectable        Attribute = "Offline_Uncorrectable"
	MediaAndDataIntegrityErrors Attribute = "Media_and_Data_Integrity_Errors"
	CriticalWarning             Attribute = "Critical_Warning"
	PercentageUsed              Attribute = "Percentage_Used"
	AvailableSpare              Attribute = "Available_Spare"
	CommandTimeout              Attribute = "Command_Timeout"
	ReportedUncorrect           Attribute = "Reported_Uncorrect"
	UDMACRCErrorCount           Attribute = "UDMA_CRC_Error_Count"
	UnsafeShutdowns             Attribute = "Unsafe_Shutdowns"
	ErrorInformationLogEntries  Attribute = "Error_Information_Log_Entries"
	PowerOffRetractCount        Attribute = "Power_Off_Retract_Count"
	RawReadErrorRate            Attribute = "Raw_Read_Error_Rate"
	SeekErrorRate               Attribute = "Seek_Error_Rate"
	TemperatureCelsius          Attribute = "Temperature_Celsius"
	AirflowTemperatureCel       Attribute = "Airflow_Temperature_Cel"
	Temperature                 Attribute = "Temperature"
	TemperatureSensor1          Attribute = "Temperature_Sensor_1"
	TemperatureSensor2          Attribute = "Temperature_Sensor_2"
)

// Class groups attributes by how their changes are interpreted.
type Class int

const (
	// ClassNone covers every attribute outside the two tracked sets,
	// including names the engine has never seen.
	ClassNone Class = iota
	// ClassCriticalState attributes describe the current physical state of
	// the drive. Any change is meaningful.
	ClassCriticalState
	// ClassCumulativeEvent attributes are event counters. Only increases
	// within a window are meaningful.
	ClassCumulativeEvent
)

func (c Class) String() string {
	switch c {
	case ClassCriticalState:
		return "critical_state"
	case ClassCumulativeEvent:
		return "cumulative_event"
	default:
		return "none"
	}
}

var criticalStateAttrs = []Attribute{
	ReallocatedSectorCt,
	CurrentPendingSector,
	OfflineUncorrectable,
	MediaAndDataIntegrityErrors,
	CriticalWarning,
	PercentageUsed,
	AvailableSpare,
}

var cumulativeEventAttrs = []Attribute{
	CommandTimeout,
	ReportedUncorrect,
	UDMACRCErrorCount,
	UnsafeShutdowns,
	ErrorInformationLogEntries,
	PowerOffRetractCount,
}

var monotonicAttrs = []Attribute{
	ReallocatedSectorCt,
	MediaAndDataIntegrityErrors,
	PercentageUsed,
}

var (
	ataTemperatureAttrs  = []Attribute{TemperatureCelsius, AirflowTemperatureCel, Temperature}
	nvmeTemperatureAttrs = []Attribute{Temperature, TemperatureSensor1, TemperatureSensor2}
)

// ClassOf reports which tracked set an attribute belongs to.
func ClassOf(name string) Class {
	a := Attribute(name)
	if containsAttr(criticalStateAttrs, a) {
		return ClassCriticalState
	}
	if containsAttr(cumulativeEventAttrs, a) {
		return ClassCumulativeEvent
	}
	return ClassNone
}

// IsMonotonic reports whether a decrease in the attribute is a reporting
// glitch rather than a real state change.
func IsMonotonic(name string) bool {
	return containsAttr(monotonicAttrs, Attribute(name))
}

// CriticalStateAttributes returns the critical-state set in a stable order.
func CriticalStateAttributes() []Attribute {
	return append([]Attribute(nil), criticalStateAttrs...)
}

// CumulativeEventAttributes returns the cumulative-event set in a stable order.
func CumulativeEventAttributes() []Attribute {
	return append([]Attribute(nil), cumulativeEventAttrs...)
}

// TemperatureAttributes returns the temperature attribute names for a disk
// type, in priority order.
func TemperatureAttributes(diskType string) []Attribute {
	if IsNVMe(diskType) {
		return append([]Attribute(nil), nvmeTemperatureAttrs...)
	}
	return append([]Attribute(nil), ataTemperatureAttrs...)
}

// IsTemperature reports whether name is a temperature attribute for the
// given disk type. Temperature is handled outside the threshold tables.
func IsTemperature(diskType, name string) bool {
	if IsNVMe(diskType) {
		return containsAttr(nvmeTemperatureAttrs, Attribute(name))
	}
	return containsAttr(ataTemperatureAttrs, Attribute(name))
}

func containsAttr(set []Attribute, a Attribute) bool {
	for _, s := range set {
		if s == a {
			return true
		}
	}
	return false
}
