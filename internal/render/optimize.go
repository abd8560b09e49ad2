package render

import (
	"context"
	"fmt"
	"os/exec"
)

// optimizePNG runs an external palette quantizer over the scratch file
// in place, before promotion. Both quantizers form their output name
// by replacing the .png suffix, so path must end in .png for the
// rewrite to land on the file itself. The pass is best effort: no
// quantizer on PATH, or a quantizer failure, leaves the unoptimized
// tile behind and never fails the task.
func optimizePNG(ctx context.Context, path string) error {
	if quant, err := exec.LookPath("pngquant"); err == nil {
		out, err := exec.CommandContext(ctx, quant, "--force", "--ext", ".png", "--", path).CombinedOutput()
		if err != nil {
			return fmt.Errorf("pngquant: %v: %s", err, out)
		}
		return nil
	}
	if quant, err := exec.LookPath("pngnq"); err == nil {
		out, err := exec.CommandContext(ctx, quant, "-e", ".png", "-f", path).CombinedOutput()
		if err != nil {
			return fmt.Errorf("pngnq: %v: %s", err, out)
		}
		return nil
	}
	return fmt.Errorf("no png quantizer found on PATH")
}
