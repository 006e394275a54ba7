// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

// Package schedule fires processing triggers at the configured cutoff
// windows so settlement runs happen on banking days.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/settler/pkg/config"

	"github.com/moov-io/base"

	"github.com/robfig/cron/v3"
)

// CutoffTimes is a time.Ticker which fires on banking days to trigger
// settlement runs (like end-of-day processing).
type CutoffTimes struct {
	C chan time.Time

	sched *cron.Cron
}

func ForCutoffTimes(cfg config.Cutoffs) (*CutoffTimes, error) {
	ct := &CutoffTimes{
		C:     make(chan time.Time),
		sched: cron.New(),
	}
	if err := ct.registerCutoffs(cfg.Timezone, cfg.Windows); err != nil {
		return nil, err
	}
	ct.sched.Start()
	return ct, nil
}

func (ct *CutoffTimes) Stop() {
	if ct == nil {
		return
	}
	if ct.C != nil {
		close(ct.C)
	}
	if ct.sched != nil {
		ct.sched.Stop()
	}
}

func (ct *CutoffTimes) maybeTick(location *time.Location) {
	now := base.Now(location)
	if !now.IsWeekend() && now.IsBankingDay() {
		ct.C <- now.Time
	}
}

func (ct *CutoffTimes) registerCutoffs(tz string, windows []string) error {
	if len(windows) == 0 {
		return errors.New("missing cutoff windows")
	}
	for i := range windows {
		if err := ct.register(tz, windows[i]); err != nil {
			return fmt.Errorf("window=%s error=%v", windows[i], err)
		}
	}
	return nil
}

func (ct *CutoffTimes) register(tz string, window string) error {
	when, err := time.Parse("15:04", window)
	if err != nil {
		return fmt.Errorf("failed to parse '%s' error=%v", window, err)
	}

	var zone string
	var location *time.Location
	if tz != "" {
		zone = fmt.Sprintf("CRON_TZ=%s", tz)
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("unknown timezone %s error=%v", tz, err)
		}
		location = l
	} else {
		location = time.UTC
	}
	schedule := fmt.Sprintf(`%s %d %d * * *`, zone, when.Minute(), when.Hour())
	ct.sched.AddFunc(schedule, func() {
		ct.maybeTick(location)
	})

	return nil
}
