package commands

import "time"

// All returns the full command set wired to d.
func All(d *Deps) []Command {
	return []Command{
		{
			Name:        "register",
			Aliases:     []string{"signup"},
			Description: "register a new stock alerts account",
			Usage:       "register <username> <password> <email>",
			Timeout:     30 * time.Second,
			Handle:      d.cmdRegister,
		},
		{
			Name:        "login",
			Aliases:     []string{"connect"},
			Description: "connect to your stock alerts account",
			Usage:       "login <username> <password>",
			Timeout:     30 * time.Second,
			Handle:      d.cmdLogin,
		},
		{
			Name:        "logout",
			Aliases:     []string{"disconnect"},
			Description: "disconnect from your account",
			Usage:       "logout",
			Handle:      d.cmdLogout,
		},
		{
			Name:        "status",
			Description: "show connection status and system info",
			Usage:       "status",
			Handle:      d.cmdStatus,
		},
		{
			Name:        "alerts",
			Description: "show your stock alerts",
			Usage:       "alerts [all|active|triggered]",
			Handle:      d.cmdAlerts,
		},
		{
			Name:        "alert",
			Aliases:     []string{"createalert", "setalert"},
			Description: "create a stock price alert",
			Usage:       "alert <stock_id> <condition> <price> [duration] [type]",
			Handle:      d.cmdAlertCreate,
		},
		{
			Name:        "alerthelp",
			Aliases:     []string{"alertinfo"},
			Description: "how to use the alert command",
			Usage:       "alerthelp",
			Handle:      d.cmdAlertHelp,
		},
		{
			Name:        "stocks",
			Aliases:     []string{"prices"},
			Description: "show current stock prices",
			Usage:       "stocks",
			Handle:      d.cmdStocks,
		},
		{
			Name:        "refresh",
			Description: "manually refresh stock prices",
			Usage:       "refresh",
			Timeout:     45 * time.Second,
			Handle:      d.cmdRefresh,
		},
		{
			Name:        "ping",
			Description: "check bot and API response time",
			Usage:       "ping",
			Handle:      d.cmdPing,
		},
		{
			Name:        "start",
			Aliases:     []string{"help"},
			Description: "show all available commands",
			Usage:       "help",
			Handle:      d.cmdStart,
		},
	}
}
