package proc

// SystemLoad is the content of /proc/loadavg without the running/total
// task counts.
type SystemLoad struct {
	Load1   float64 `json:"load1"`
	Load5   float64 `json:"load5"`
	Load15  float64 `json:"load15"`
	LastPID int     `json:"last_pid"`
}

// ParseLoadAvg parses /proc/loadavg, e.g. "0.20 0.18 0.12 1/80 11206".
func ParseLoadAvg(text string) (SystemLoad, error) {
	var (
		l SystemLoad
		c = cursor{buf: terminated(text), name: "loadavg"}
	)
	l.Load1 = c.toFloat("load1", c.read("load1", ' ', floatLen))
	l.Load5 = c.toFloat("load5", c.read("load5", ' ', floatLen))
	l.Load15 = c.toFloat("load15", c.read("load15", ' ', floatLen))
	c.skip(1)
	l.LastPID = c.toInt("last_pid", c.readLine("last_pid", integerLen))
	if c.err != nil {
		return SystemLoad{}, c.err
	}
	return l, nil
}
