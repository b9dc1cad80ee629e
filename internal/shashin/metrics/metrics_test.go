package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCommand(t *testing.T) {
	before := testutil.ToFloat64(commandsTotal.WithLabelValues("setbalance", ResultOK))
	ObserveCommand("setbalance", ResultOK)
	ObserveCommand("setbalance", ResultOK)
	ObserveCommand("setbalance", ResultInvalid)

	if got := testutil.ToFloat64(commandsTotal.WithLabelValues("setbalance", ResultOK)) - before; got != 2 {
		t.Errorf("ok delta = %v, want 2", got)
	}
}

func TestSessionsSwept(t *testing.T) {
	before := testutil.ToFloat64(sessionsEvicted)
	SessionsSwept(3, 7)

	if got := testutil.ToFloat64(sessionsEvicted) - before; got != 3 {
		t.Errorf("evicted delta = %v, want 3", got)
	}
	if got := testutil.ToFloat64(sessionsActive); got != 7 {
		t.Errorf("active = %v, want 7", got)
	}
}

func TestReportCounters(t *testing.T) {
	gen := testutil.ToFloat64(reportsGenerated)
	fail := testutil.ToFloat64(reportSendFailures)
	limited := testutil.ToFloat64(rateLimited)

	ReportGenerated()
	ReportSendFailed()
	RateLimited()

	if testutil.ToFloat64(reportsGenerated)-gen != 1 ||
		testutil.ToFloat64(reportSendFailures)-fail != 1 ||
		testutil.ToFloat64(rateLimited)-limited != 1 {
		t.Error("report counters did not advance by one")
	}
}
