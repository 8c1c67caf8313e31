// Package testing provides fakes, mocks and builders shared by unit tests.
//
//   - FakeControlPlane: in-memory cluster manager whose hosts change state
//     the way a real one would when activated or deactivated
//   - FakeDialer / FakeSession: scripted remote command execution
//   - MockProber / MockConfirmer: testify mocks for reachability and
//     operator confirmation
//   - RecordingObserver: captures rollout progress events
//   - NewHost / NewDatacenter: builders for inventory fixtures
//
// Usage:
//
//	cp := testing.NewFakeControlPlane(
//	    testing.NewDatacenter("dc1", testing.NewCluster("c1",
//	        testing.NewHost("h1", 3),
//	    )),
//	)
//	cp.Script("h1", cluster.StateRebooting, cluster.StateUp)
package testing
