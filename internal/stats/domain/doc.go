// Package domain holds the per-cycle report types shared by the collector, the sinks, and the reporter.
package domain
