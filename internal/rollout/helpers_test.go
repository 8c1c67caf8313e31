package rollout_test

import (
	"time"

	"github.com/imamik/hvroll/internal/logging"
	"github.com/imamik/hvroll/internal/rollout"
	hvtesting "github.com/imamik/hvroll/internal/testing"
)

const (
	checkCmd  = "yum check-update -q"
	applyCmd  = "yum -y update"
	cleanCmd  = "yum clean all"
	updatesRC = 100
)

func fastTiming() rollout.Timing {
	return rollout.Timing{
		PollInterval: time.Millisecond,
		WaitTimeout:  50 * time.Millisecond,
	}
}

func testOptions() rollout.Options {
	return rollout.Options{Timing: fastTiming()}
}

type fixture struct {
	cp        *hvtesting.FakeControlPlane
	dialer    *hvtesting.FakeDialer
	prober    *hvtesting.MockProber
	confirmer *hvtesting.MockConfirmer
}

func (f fixture) deps() rollout.Deps {
	d := rollout.Deps{
		ControlPlane: f.cp,
		Dialer:       f.dialer,
		Prober:       f.prober,
		Logger:       logging.Discard(),
	}
	if f.confirmer != nil {
		d.Confirmer = f.confirmer
	}
	return d
}

func newFixture(cp *hvtesting.FakeControlPlane) fixture {
	return fixture{
		cp:     cp,
		dialer: hvtesting.NewFakeDialer(),
		prober: hvtesting.ReachableProber(),
	}
}

// withUpdates scripts the check command of address to report pending updates.
func withUpdates(d *hvtesting.FakeDialer, address string) {
	d.On(address, checkCmd, hvtesting.CommandResult{ExitCode: updatesRC})
}
