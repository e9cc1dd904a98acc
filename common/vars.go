package common

// Version is set at build time via -ldflags "-X .../common.Version=..."
var Version = "dev"

// PackageName prefixes exported metrics and tags logs.
const PackageName = "collection-provisioning-backend"
