// Package chat sends questions to /ask and hands answers to a View.
package chat
