// Copyright 2025 The flowkv Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

const (
	// App 应用程序名称
	App = "flowkv"

	// Version 应用程序版本
	Version = "v0.1.0"

	// MaxFramePayload 单个 Frame Payload 的最大长度 (2^30-1)
	//
	// Frame Header 的低 30 位用于编码 Payload 长度 因此这是协议允许的理论上限
	MaxFramePayload = 1<<30 - 1

	// CompressionThreshold 压缩阈值 超过该长度且指定了压缩算法的消息才会压缩 (MTU-safe)
	CompressionThreshold = 1436

	// SubscriptionQueueCapacity 单个订阅的有界队列容量
	SubscriptionQueueCapacity = 128

	// InboundStreamBacklog 多路复用器入站 Stream 的默认积压深度
	InboundStreamBacklog = 32
)
