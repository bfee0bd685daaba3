// Package app wires configuration, storage, the scheduler, jobs, the HTTP API
// and the ops alert channel into one runnable daemon.
package app
