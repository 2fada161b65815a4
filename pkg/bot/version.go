package bot

// Version is the current version of the bot module.
const Version = "1.0.0"

// MinCompatibleVersion is the minimum compatible version for consumers.
const MinCompatibleVersion = "1.0.0"
