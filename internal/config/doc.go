// Package config loads, normalizes, and validates montage configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as MONTAGE_FFMPEG and AWS_REGION. The Config
// type centralizes every knob the CLI and the composition pipeline need, so
// work directories, ffmpeg settings, overlay geometry, and subtitle layout
// rules are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
