// Package remote holds what the storage backends share: classification of API
// and token errors into upload failure kinds.
package remote
