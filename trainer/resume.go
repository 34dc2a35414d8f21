package trainer

import "github.com/IndrashisDas/dl-lab-project/net/transformer"

// Resume reloads the model at dstmodel when resume is set, so a run can
// continue from its best checkpoint. It returns nil when not resuming.
func Resume(resume bool, dstmodel string) (*transformer.Model, error) {
	if !resume || dstmodel == "" {
		return nil, nil
	}
	return transformer.ReadZlibWeightsFromFile(dstmodel)
}
