package workflow

import (
	"encoding/json"
	"fmt"
	"reflect"

	"bitbucket.org/vmgroup/dealer_backend/utils"
)

// dropPoison marks an error as unrecoverable payload corruption. Callers of
// ProcessMessage ack such messages instead of retrying them.
func dropPoison(err error) error {
	return fmt.Errorf("%w: %v", utils.ErrDropMessage, err)
}

// OnlyBookkeepingChanged reports whether the old and new payloads of an
// update event differ only in the server-written createdAt timestamp.
// Update handlers no-op in that case, otherwise the handlers' own write-backs
// would re-trigger them forever.
func OnlyBookkeepingChanged(oldObj, newObj []byte) (bool, error) {
	if len(oldObj) == 0 || len(newObj) == 0 {
		return false, nil
	}

	var oldMap, newMap map[string]interface{}
	if err := json.Unmarshal(oldObj, &oldMap); err != nil {
		return false, dropPoison(err)
	}
	if err := json.Unmarshal(newObj, &newMap); err != nil {
		return false, dropPoison(err)
	}

	if reflect.DeepEqual(oldMap, newMap) {
		return true, nil
	}

	delete(oldMap, "createdAt")
	delete(newMap, "createdAt")
	return reflect.DeepEqual(oldMap, newMap), nil
}

// StatusFlippedTrue reports the flags that transitioned false->true between
// the old and new document. Only these transitions cascade onto the line-item
// mirrors.
func StatusFlippedTrue(oldFlags, newFlags map[string]bool) []string {
	var flipped []string
	for _, name := range []string{"deleted", "cancelled", "rejected", "completed"} {
		if newFlags[name] && !oldFlags[name] {
			flipped = append(flipped, name)
		}
	}
	return flipped
}
