package quota

import (
	"fmt"
	"sync"

	"timelens/internal/infra/geoip"
)

// AbuseReport is the advisory outcome of a fan-out check. A flag never blocks
// by itself; callers decide whether to enforce it.
type AbuseReport struct {
	Flagged bool
	Reason  string
	Country string
}

// AbuseDetector tracks device and IP fan-out. More distinct user ids than
// maxUsersPerDevice behind one device identifier, or more requests than
// maxRequestsPerIP sharing an IP signature, flags the request.
type AbuseDetector struct {
	mu                sync.Mutex
	deviceUsers       map[string]map[string]struct{}
	ipCounts          map[string]int
	maxUsersPerDevice int
	maxRequestsPerIP  int
	geo               geoip.CountryResolver
}

// NewAbuseDetector creates a detector with the given thresholds. The geo
// resolver is optional and only enriches reports with a country code.
func NewAbuseDetector(maxUsersPerDevice, maxRequestsPerIP int, geo geoip.CountryResolver) *AbuseDetector {
	return &AbuseDetector{
		deviceUsers:       map[string]map[string]struct{}{},
		ipCounts:          map[string]int{},
		maxUsersPerDevice: maxUsersPerDevice,
		maxRequestsPerIP:  maxRequestsPerIP,
		geo:               geo,
	}
}

// Observe records one admission attempt for the device/user/IP triple.
func (d *AbuseDetector) Observe(deviceID, userID, ip string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if deviceID != "" && userID != "" {
		users, ok := d.deviceUsers[deviceID]
		if !ok {
			users = map[string]struct{}{}
			d.deviceUsers[deviceID] = users
		}
		users[userID] = struct{}{}
	}
	if ip != "" {
		d.ipCounts[ip]++
	}
}

// Check evaluates the thresholds for the device/IP pair.
func (d *AbuseDetector) Check(deviceID, ip string) AbuseReport {
	d.mu.Lock()
	defer d.mu.Unlock()

	report := AbuseReport{Country: d.lookupCountry(ip)}
	if deviceID != "" && d.maxUsersPerDevice > 0 {
		if users := len(d.deviceUsers[deviceID]); users > d.maxUsersPerDevice {
			report.Flagged = true
			report.Reason = fmt.Sprintf("device shared by %d users", users)
			return report
		}
	}
	if ip != "" && d.maxRequestsPerIP > 0 {
		if count := d.ipCounts[ip]; count > d.maxRequestsPerIP {
			report.Flagged = true
			report.Reason = fmt.Sprintf("ip issued %d requests", count)
			return report
		}
	}
	return report
}

// Reset drops all accumulated fan-out state. The sweep calls this so the
// maps stay bounded.
func (d *AbuseDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deviceUsers = map[string]map[string]struct{}{}
	d.ipCounts = map[string]int{}
}

func (d *AbuseDetector) lookupCountry(ip string) string {
	if d.geo == nil || ip == "" {
		return ""
	}
	country, err := d.geo.CountryCode(ip)
	if err != nil {
		return ""
	}
	return country
}
