// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML or YAML configuration storage
//   - PromptStore: user-editable prompt files under ~/.kbchat/prompts
//
// LoadSettings turns a ConfigStore plus the environment into domain.AppSettings.
package file
