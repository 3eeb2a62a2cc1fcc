// Package types defines the plain-data types shared by the comparator, the
// dataset loaders, and every consumer of an analysis (API, renderers, report
// writer, MCP tools). They carry no behaviour beyond small helpers and are
// safe to serialise as JSON or YAML.
package types
