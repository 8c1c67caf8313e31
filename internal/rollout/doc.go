// Package rollout patches hypervisor hosts one at a time without taking the
// cluster offline.
//
// Each host goes through four phases:
//  1. Drain: the control plane moves it to maintenance and relocates its VMs ([Drainer]).
//  2. Patch: updates are checked for and applied over SSH, then a reboot is requested ([Patcher]).
//  3. Verify: the host answers pings again and the control plane reports it in maintenance ([Verifier]).
//  4. Undrain: the host is activated and returns to service ([Drainer]).
//
// The [Coordinator] orders hosts by ascending active VM count, runs the
// phases per host and stops to ask for confirmation once too many hosts
// have failed. Hosts are processed strictly sequentially so that at most one
// host's workload is being relocated at a time.
package rollout
