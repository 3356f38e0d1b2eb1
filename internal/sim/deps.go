package sim

import (
	"log"
	"math/rand"

	"github.com/pjtunstall/by-a-thread/logging"
)

// Deps carries shared infrastructure dependencies required by the simulation engine.
type Deps struct {
	Logger  *log.Logger
	Metrics *logging.Metrics
	Clock   logging.Clock
	RNG     *rand.Rand
}
