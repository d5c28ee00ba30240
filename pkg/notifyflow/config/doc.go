/*
Package config loads notifyflow settings and the process role declaration.

# Overview

Settings are read from a YAML or JSON file and then overridden by
environment variables prefixed with NOTIFYFLOW_:

	settings, err := config.FromFile("notifyflow.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	if err := settings.ApplyEnv(); err != nil {
	    log.Fatal(err)
	}

Missing fields fall back to Defaults().

# Process Role

Background-only event kinds (subscription expiry, ML job lifecycle) must run
in exactly one kind of process. The role is declared explicitly at startup
with process_role (or NOTIFYFLOW_PROCESS_ROLE) and is never inferred from the
environment, the hostname, or the command line:

	isWorker, err := settings.IsWorkerProcess()
	if err != nil {
	    // ErrRoleUndeclared: refuse to start
	}

# Thread Safety

Settings is a plain value. Load it once at startup and pass copies around.
*/
package config
