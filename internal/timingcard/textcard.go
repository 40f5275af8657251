package timingcard

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// TimingCard is the controller's complete static configuration, filled
// in either by AB3418 polls or by re-reading the on-disk text file.
type TimingCard struct {
	Flags    PhaseFlags
	Timing   [8]PhaseTiming
	Free     FreePlan
	CoordPlans []CoordPlan
}

// PlanByNumber returns a pointer to the coordination plan matching num,
// or nil if the card has no such plan.
func (c *TimingCard) PlanByNumber(num int) *CoordPlan {
	for i := range c.CoordPlans {
		if c.CoordPlans[i].PlanNum == num {
			return &c.CoordPlans[i]
		}
	}
	return nil
}

// DeriveAll runs CoordPlan.Derive on every plan the card holds, the way
// the driver does it once, after all polls return.
func (c *TimingCard) DeriveAll() {
	for i := range c.CoordPlans {
		c.CoordPlans[i].Derive(c.Flags)
	}
}

// LoadTimingCard parses a .timecard text file. The format is as flat
// and line-oriented as the nmap file it sits beside, so a
// bufio.Scanner-based reader covers it without pulling in a general
// config-file library for this one legacy shape.
func LoadTimingCard(path string) (*TimingCard, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("timingcard: open: %w", err)
	}
	defer f.Close()
	return ParseTimingCard(f)
}

// ParseTimingCard parses timing-card text content from r. The format is
// "key value..." pairs, one per line, with repeating "CoordPlan <n>"
// blocks terminated by "end_plan".
func ParseTimingCard(r io.Reader) (*TimingCard, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	card := &TimingCard{}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fs := strings.Fields(line)
		key := fs[0]
		switch key {
		case "PhaseFlags.Permitted":
			card.Flags.Permitted = mustBin8(fs[1])
		case "PhaseFlags.RecallMax":
			card.Flags.RecallMax = mustBin8(fs[1])
		case "PhaseFlags.RecallMin":
			card.Flags.RecallMin = mustBin8(fs[1])
		case "PhaseFlags.RecallPed":
			card.Flags.RecallPed = mustBin8(fs[1])
		case "FreePlan.GreenFactor":
			for i := 0; i < 8 && i+1 < len(fs); i++ {
				v, _ := strconv.Atoi(fs[i+1])
				card.Free.GreenFactor[i] = uint16(v)
			}
		case "CoordPlan":
			plan, err := parseCoordPlanBlock(sc, fs)
			if err != nil {
				return nil, err
			}
			card.CoordPlans = append(card.CoordPlans, *plan)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("timingcard: scan: %w", err)
	}
	return card, nil
}

func mustBin8(s string) uint8 {
	v, err := strconv.ParseUint(s, 2, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func parseCoordPlanBlock(sc *bufio.Scanner, header []string) (*CoordPlan, error) {
	plan := &CoordPlan{}
	if len(header) > 1 {
		n, err := strconv.Atoi(header[1])
		if err != nil {
			return nil, fmt.Errorf("timingcard: CoordPlan number: %w", err)
		}
		plan.PlanNum = n
	}
	for i := range plan.GreenFactorOrFO {
		plan.GreenFactorOrFO[i] = -1
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "end_plan" {
			return plan, nil
		}
		fs := strings.Fields(line)
		switch fs[0] {
		case "CycleLength":
			v, _ := strconv.Atoi(fs[1])
			plan.CycleLengthS = uint16(v)
		case "ForceOffFlag":
			plan.ForceOffFlag = fs[1] == "1"
		case "GreenFactorOrFO":
			for i := 0; i < 8 && i+1 < len(fs); i++ {
				v, _ := strconv.Atoi(fs[i+1])
				plan.GreenFactorOrFO[i] = int16(v)
			}
		case "SyncPhases":
			plan.SyncPhases = mustBin8(fs[1])
		case "LagPhases":
			plan.LagPhases = mustBin8(fs[1])
		case "OmitPhases":
			plan.OmitPhases = mustBin8(fs[1])
		case "HoldPhases":
			plan.HoldPhases = mustBin8(fs[1])
		case "TSPEnabled":
			plan.TSPEnabled = fs[1] == "1"
		}
	}
	return nil, fmt.Errorf("timingcard: CoordPlan block missing end_plan")
}
