// Command emblem is the CLI for the badge orchestrator daemon. It talks to
// emblemd over its HTTP API to manage schedules and inspect job history.
package main
