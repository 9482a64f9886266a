// Command drivesync reconciles a Google Drive folder tree with a Google
// Photos library and copies whatever either side is missing.
package main
