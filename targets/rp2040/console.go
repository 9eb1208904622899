//go:build rp2040

package main

import (
	"bytes"
	"strconv"
	"strings"
)

// processConsole executes every complete line waiting in inputBuffer.
//
//	regs          register map as CSV
//	status        counters
//	scan on|off   start or stop back-to-back scans
//	name          read a register
//	name=value    write a register
func processConsole() {
	for {
		data := inputBuffer.Data()
		end := bytes.IndexByte(data, '\n')
		if end < 0 {
			return
		}
		line := strings.TrimSpace(string(data[:end]))
		inputBuffer.Pop(end + 1)
		if line != "" {
			execute(line)
		}
	}
}

func execute(line string) {
	switch line {
	case "regs":
		reply(sys.Registers().CSV())
		return
	case "status":
		reportStatus()
		return
	case "scan on":
		sys.SetScanTrigger(true)
		reply("ok\n")
		return
	case "scan off":
		sys.SetScanTrigger(false)
		exposure.Stop()
		reply("ok\n")
		return
	}

	name, value, isWrite := strings.Cut(line, "=")
	name = strings.TrimSpace(name)
	if !isWrite {
		v, err := sys.ReadRegister(name)
		if err != nil {
			reply("error: " + err.Error() + "\n")
			return
		}
		reply(name + "=" + strconv.FormatUint(uint64(v), 10) + "\n")
		return
	}
	v, err := strconv.ParseUint(strings.TrimSpace(value), 0, 32)
	if err == nil {
		err = sys.WriteRegister(name, uint32(v))
	}
	if err != nil {
		reply("error: " + err.Error() + "\n")
		return
	}
	reply("ok\n")
}

func reportStatus() {
	st := sys.Status()
	reply("uptime_us=" + strconv.FormatUint(UptimeMicros(), 10) +
		" cycle=" + strconv.FormatUint(st.Cycle, 10) +
		" scans=" + strconv.FormatUint(st.Scans, 10) +
		" dumps=" + strconv.FormatUint(st.Dumps, 10) +
		" dropped=" + strconv.FormatUint(st.Line.Dropped, 10) +
		" stalls=" + strconv.FormatUint(uint64(stalls), 10) +
		" errors=" + strconv.FormatUint(uint64(msgerrors), 10) + "\n")
}

func reply(s string) {
	outputBuffer.Output([]byte(s))
}
