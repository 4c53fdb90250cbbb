package gateway

import (
	"fmt"
	"os"
	"strings"
)

// Privilege is the capability to run the OpenVPN tool as the superuser. It is
// only obtainable through RequireSuperuser, which makes every call site that
// elevates visible in the type signature of the Gateway constructor.
type Privilege struct {
	method string
	prefix []string
}

// Supported elevation methods.
const (
	MethodSudo   = "sudo"
	MethodPkexec = "pkexec"
	MethodNone   = "none"
)

// RequireSuperuser returns the privilege for method. "none" is only accepted
// when the process already runs as root.
func RequireSuperuser(method string) (Privilege, error) {
	return requireSuperuser(method, os.Geteuid())
}

func requireSuperuser(method string, euid int) (Privilege, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", MethodSudo:
		if euid == 0 {
			return Privilege{method: MethodNone}, nil
		}
		return Privilege{method: MethodSudo, prefix: []string{"sudo", "-n", "--"}}, nil
	case MethodPkexec:
		if euid == 0 {
			return Privilege{method: MethodNone}, nil
		}
		return Privilege{method: MethodPkexec, prefix: []string{"pkexec"}}, nil
	case MethodNone:
		if euid != 0 {
			return Privilege{}, fmt.Errorf("privilege method %q requires running as root (euid %d)", MethodNone, euid)
		}
		return Privilege{method: MethodNone}, nil
	default:
		return Privilege{}, fmt.Errorf("unsupported privilege method %q", method)
	}
}

// Method reports the elevation method in use.
func (p Privilege) Method() string {
	return p.method
}

func (p Privilege) valid() bool {
	return p.method != ""
}

// wrap returns the argv that runs tool args... with elevated privileges.
func (p Privilege) wrap(tool string, args []string) (string, []string) {
	argv := make([]string, 0, len(p.prefix)+1+len(args))
	argv = append(argv, p.prefix...)
	argv = append(argv, tool)
	argv = append(argv, args...)
	return argv[0], argv[1:]
}
