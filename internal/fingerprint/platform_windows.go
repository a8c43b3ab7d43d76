//go:build windows

package fingerprint

const nameEnvVar = "COMPUTERNAME"

func identityStrategies(runner Runner) []Strategy {
	return []Strategy{
		&Query{
			Method:  "powershell",
			Command: "powershell",
			Args:    []string{"-NoProfile", "-Command", "(Get-WmiObject -Class Win32_ComputerSystemProduct).UUID"},
			Parse:   SingleValue,
			Runner:  runner,
		},
		&Query{
			Method:  "wmic",
			Command: "wmic",
			Args:    []string{"csproduct", "get", "uuid", "/value"},
			Parse:   KeyValue("UUID", "="),
			Runner:  runner,
		},
		&Query{
			Method:  "registry",
			Command: "reg",
			Args:    []string{"query", `HKLM\SOFTWARE\Microsoft\Cryptography`, "/v", "MachineGuid"},
			Parse:   LastField("MachineGuid"),
			Runner:  runner,
		},
	}
}

func nameStrategies(runner Runner) []Strategy {
	return []Strategy{
		&Query{
			Method:  "powershell",
			Command: "powershell",
			Args:    []string{"-NoProfile", "-Command", "(Get-WmiObject -Class Win32_ComputerSystem).Name"},
			Parse:   SingleValue,
			Runner:  runner,
		},
		&Query{
			Method:  "wmic",
			Command: "wmic",
			Args:    []string{"computersystem", "get", "name", "/value"},
			Parse:   KeyValue("Name", "="),
			Runner:  runner,
		},
	}
}
