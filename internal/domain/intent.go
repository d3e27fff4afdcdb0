package domain

type Intent string

const (
	IntentPowerOff       Intent = "power_off"
	IntentReboot         Intent = "reboot"
	IntentReportIP       Intent = "report_ip"
	IntentReportHumidity Intent = "report_humidity"
	IntentUnrecognized   Intent = "unrecognized"
)

// Irreversible reports whether the intent ends the process or the host.
func (i Intent) Irreversible() bool {
	return i == IntentPowerOff || i == IntentReboot
}
