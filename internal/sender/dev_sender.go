package sender

import (
	"fmt"

	"github.com/tarjetajoven/api/pkg/logger"
)

// DevSender logs the code instead of delivering it. Used until a real
// delivery channel is wired behind CodeSender.
type DevSender struct{}

func NewDevSender() *DevSender {
	return &DevSender{}
}

func (d *DevSender) SendOTP(curp, code string) error {
	logger.Info("[DEV OTP] One-time code",
		"curp", curp,
		"code", code,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"ONE-TIME CODE (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"CURP: %s\n"+
		"Code: %s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		curp, code)

	return nil
}
