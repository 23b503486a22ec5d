// Package device implements the firmware side of the USB HID flash bootloader.
//
// A Bootloader is driven by an external polling loop. Each Poll consumes at
// most one packet from the Transport, interprets it, and drives the flash
// engine:
//
//   - PROGRAM_DEVICE data is staged in a one-block buffer and committed a
//     block at a time, padding any leading or trailing part of a block that
//     the host did not send with erased words
//   - user ID and configuration words are written directly, the latter only
//     after UNLOCK_CONFIG
//   - SIGN_FLASH rewrites the page holding the recovery signature
//
// Every erase and write goes through nvm.Unlocker. A refused commit halts the
// bootloader until the platform resets it.
//
// Commands the device does not understand, and writes it will not perform,
// are dropped without telling the host. An Observer sees every drop.
package device
