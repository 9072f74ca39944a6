/*
Package resilience provides a consecutive-failure circuit breaker.

# Overview

The terminal manager runs every shell spawn through a Breaker. When the shell
binary is missing or the host refuses new processes, spawning fails the same
way every time; after FailureThreshold consecutive failures the breaker opens
and session creation fails immediately until Cooldown has passed.

# Usage

	breaker := resilience.New("shell-spawn", resilience.Settings{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state changed", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	err := breaker.Execute(func() error {
		proc, err = spawn(opts)
		return err
	})

# States

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                                       |
	                                                   [failure]
	                                                       v
	                                                      Open
*/
package resilience
