package keep

// Version is the current keep release.
const Version = "0.3.0"
