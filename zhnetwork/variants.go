package zhnetwork

// This file gives each message kind its own small constructor instead of
// leaving callers to manually clear payload/confirm_id/payload_len on a
// single fat Frame, avoiding a "clear payload / zero length"
// re-initialization dance.

// BroadcastFrame builds a BROADCAST frame originated by self.
func BroadcastFrame(networkID, messageID uint32, self MAC, payload []byte) Frame {
	f := Frame{
		Type:           MessageBroadcast,
		NetworkID:      networkID,
		MessageID:      messageID,
		OriginalSender: self,
		OriginalTarget: Broadcast,
	}
	f.PayloadLen = uint8(copy(f.Payload[:], payload))
	return f
}

// UnicastFrame builds a UNICAST frame from self to target.
func UnicastFrame(networkID, messageID uint32, self, target MAC, payload []byte) Frame {
	f := Frame{
		Type:           MessageUnicast,
		NetworkID:      networkID,
		MessageID:      messageID,
		OriginalSender: self,
		OriginalTarget: target,
	}
	f.PayloadLen = uint8(copy(f.Payload[:], payload))
	return f
}

// DeliveryConfirmFor builds the DELIVERY_CONFIRM that acknowledges the
// receipt of unicast (sent back toward its originator). Its ConfirmID is set
// to the message_id of the unicast being acknowledged.
func DeliveryConfirmFor(networkID, messageID uint32, self MAC, unicast Frame) Frame {
	return Frame{
		Type:           MessageDeliveryConfirm,
		NetworkID:      networkID,
		MessageID:      messageID,
		ConfirmID:      unicast.MessageID,
		OriginalSender: self,
		OriginalTarget: unicast.OriginalSender,
	}
}

// SearchRequestFor builds a SEARCH_REQUEST flooded to discover a route to
// target.
func SearchRequestFor(networkID, messageID uint32, self, target MAC) Frame {
	return Frame{
		Type:           MessageSearchRequest,
		NetworkID:      networkID,
		MessageID:      messageID,
		OriginalSender: self,
		OriginalTarget: target,
	}
}

// SearchResponseFor builds the SEARCH_RESPONSE answering a SEARCH_REQUEST
// whose target was self.
func SearchResponseFor(networkID, messageID uint32, self MAC, request Frame) Frame {
	return Frame{
		Type:           MessageSearchResponse,
		NetworkID:      networkID,
		MessageID:      messageID,
		OriginalSender: self,
		OriginalTarget: request.OriginalSender,
	}
}
