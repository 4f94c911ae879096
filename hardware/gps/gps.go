// Package gps frames NMEA sentences from a NEO-6M style serial byte
// stream and extracts position/velocity fixes from RMC records.
package gps

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/trackguard/trackguard/hardware"
	"github.com/trackguard/trackguard/log2"
)

const (
	sentencePrefix = "$GPRMC"
	maxLineLength  = 128

	knotsToKmh = 1.852
)

// ErrNoFixTimeout: the read deadline elapsed without a valid-fix
// sentence. Logged, not propagated: Read answers with Placeholder.
var ErrNoFixTimeout = errors.New("gps: no fix before deadline")

// ErrReadTimeout marks an inner per-byte timeout on the serial port.
var ErrReadTimeout = errors.New("gps: serial read timeout")

type Fix struct {
	Valid      bool
	Latitude   float64 // °, negative south
	Longitude  float64 // °, negative west
	Altitude   float64 // m
	SpeedKmh   float64
	CourseDeg  float64
	Satellites int
	UTCHour    int
	UTCMin     int
	UTCSec     int
	Quality    hardware.Quality
}

// Placeholder is the no-fix substitute: a fixed reference coordinate,
// zero speed, zero satellites.
var Placeholder = Fix{
	Latitude:  21.028511,
	Longitude: 105.804817,
	Altitude:  10.0,
	Quality:   hardware.QualityDegraded,
}

type Receiver struct {
	br   *bufio.Reader
	log  *log2.Log
	line []byte

	lk       sync.Mutex
	last     Fix
	haveLast bool
}

func NewReceiver(r io.Reader, log *log2.Log) *Receiver {
	return &Receiver{
		br:   bufio.NewReader(r),
		log:  log,
		line: make([]byte, 0, maxLineLength),
	}
}

// Read polls the byte stream until a valid-fix RMC sentence or the
// deadline. No fix in time yields Placeholder with success so the
// telemetry cycle keeps going.
func (rcv *Receiver) Read(timeout time.Duration) (Fix, error) {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		c, err := rcv.br.ReadByte()
		if err != nil {
			if err == io.EOF || errors.Cause(err) == ErrReadTimeout {
				// inner byte timeout, keep polling until the deadline
				time.Sleep(10 * time.Millisecond)
				continue
			}
			rcv.log.Errorf("gps stream: %v", err)
			return Placeholder, nil
		}

		if c != '\n' {
			if len(rcv.line) < maxLineLength {
				rcv.line = append(rcv.line, c)
			}
			continue
		}

		line := strings.TrimRight(string(rcv.line), "\r")
		rcv.line = rcv.line[:0]

		if !strings.HasPrefix(line, sentencePrefix) {
			continue
		}
		if fix, ok := parseRMC(line); ok {
			rcv.lk.Lock()
			rcv.last = fix
			rcv.haveLast = true
			rcv.lk.Unlock()
			rcv.log.Debugf("gps fix lat=%.6f lon=%.6f speed=%.1fkm/h", fix.Latitude, fix.Longitude, fix.SpeedKmh)
			return fix, nil
		}
	}

	rcv.log.Infof("gps %v, using placeholder", ErrNoFixTimeout)
	return Placeholder, nil
}

// LastFix returns the most recently accepted valid fix, independent of
// the live read path.
func (rcv *Receiver) LastFix() (Fix, bool) {
	rcv.lk.Lock()
	defer rcv.lk.Unlock()
	return rcv.last, rcv.haveLast
}

// parseRMC extracts a fix from one RMC sentence:
// $GPRMC,time,status,lat,N/S,lon,E/W,speed,course,date,mag,E/W,mode*chk
// Only status "A" is a fix; anything else yields no fix for the line.
func parseRMC(line string) (Fix, bool) {
	if i := strings.IndexByte(line, '*'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Split(line, ",")
	if len(fields) < 9 {
		return Fix{}, false
	}
	if fields[2] != "A" {
		return Fix{}, false
	}

	fix := Fix{Valid: true, Quality: hardware.QualityNominal}
	fix.UTCHour, fix.UTCMin, fix.UTCSec = parseUTC(fields[1])

	var err error
	if fix.Latitude, err = parseCoordinate(fields[3], fields[4] == "S"); err != nil {
		return Fix{}, false
	}
	if fix.Longitude, err = parseCoordinate(fields[5], fields[6] == "W"); err != nil {
		return Fix{}, false
	}
	if knots, err := strconv.ParseFloat(fields[7], 64); err == nil {
		fix.SpeedKmh = knots * knotsToKmh
	}
	if course, err := strconv.ParseFloat(fields[8], 64); err == nil {
		fix.CourseDeg = course
	}
	return fix, true
}

// parseCoordinate converts DDMM.MMMM to decimal degrees: whole degrees
// are the integer quotient by 100, the remainder is minutes over 60.
// Southern/western hemisphere negates.
func parseCoordinate(mag string, negative bool) (float64, error) {
	if mag == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(mag, 64)
	if err != nil {
		return 0, errors.Trace(err)
	}
	v /= 100
	deg := float64(int(v))
	out := deg + (v-deg)*100/60
	if negative {
		out = -out
	}
	return out, nil
}

func parseUTC(s string) (hour, min, sec int) {
	if len(s) < 6 {
		return
	}
	hour, _ = strconv.Atoi(s[0:2])
	min, _ = strconv.Atoi(s[2:4])
	sec, _ = strconv.Atoi(s[4:6])
	return
}
