// Package config resolves environment-style settings for the publish and
// verify pipeline.
//
// Values are looked up through a Source each time they are needed rather than
// captured at startup, so long-running processes pick up rotated credentials.
// The process environment takes precedence; a .env file found by walking up
// from the working directory fills in variables that are not already set, and
// an optional YAML file supplies defaults under both.
package config
