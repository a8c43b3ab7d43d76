//go:build !unix && !windows

package fingerprint

const nameEnvVar = "HOSTNAME"

func identityStrategies(Runner) []Strategy { return nil }

func nameStrategies(Runner) []Strategy { return nil }
