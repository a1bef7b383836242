package types

// Version is the backend worker version, overridden at build time via ldflags.
const Version = "0.2.0"
