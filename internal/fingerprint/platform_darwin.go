//go:build darwin

package fingerprint

const nameEnvVar = "HOSTNAME"

func identityStrategies(runner Runner) []Strategy {
	return []Strategy{
		&Query{
			Method:  "ioreg",
			Command: "ioreg",
			Args:    []string{"-rd1", "-c", "IOPlatformExpertDevice"},
			Parse:   KeyValue(`"IOPlatformUUID"`, "="),
			Runner:  runner,
		},
		&Query{
			Method:  "system_profiler",
			Command: "system_profiler",
			Args:    []string{"SPHardwareDataType"},
			Parse:   KeyValue("Hardware UUID", ":"),
			Runner:  runner,
		},
		&Query{
			Method:  "sysctl",
			Command: "sysctl",
			Args:    []string{"-n", "kern.uuid"},
			Parse:   SingleValue,
			Runner:  runner,
		},
	}
}

func nameStrategies(runner Runner) []Strategy {
	return []Strategy{
		&Query{Method: "scutil", Command: "scutil", Args: []string{"--get", "ComputerName"}, Parse: SingleValue, Runner: runner},
		unameStrategy{},
	}
}
